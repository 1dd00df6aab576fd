// Package thetaapi contains a small client for the Theta streaming API: bearer token
// management, user lookup, live status and the secondary lookups used to enrich alerts.
package thetaapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
)

// Client issues authenticated requests against the Theta API.
type Client struct {
	BaseURL    string
	Tokens     *TokenSource
	HTTPClient *http.Client
}

// User is a Theta account as returned by the user endpoint.
type User struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
	ViewCount       int64  `json:"view_count"`
}

// LiveStream is an entry of the live-status endpoint.
type LiveStream struct {
	UserID       string `json:"user_id"`
	UserName     string `json:"user_name"`
	Title        string `json:"title"`
	Type         string `json:"type"`
	GameID       string `json:"game_id"`
	ThumbnailURL string `json:"thumbnail_url"`
	ViewerCount  int64  `json:"viewer_count"`
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// get performs a GET and decodes the JSON body into out when the status is 200.
// The status is returned for every response; err is only set for transport or decode failures.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return 0, &APIError{Err: err}
	}
	req.URL.RawQuery = q.Encode()
	if c.Tokens != nil {
		req.Header.Set("Client-Id", c.Tokens.ClientID())
		if tok := c.Tokens.Current(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return 0, &APIError{Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, nil
}

func unexpected(status int) error {
	return &APIError{Status: status, Body: http.StatusText(status)}
}

type userPage struct {
	Data []User `json:"data"`
}

// UserByLogin resolves a login name. An unknown login is ErrNotFound.
func (c *Client) UserByLogin(ctx context.Context, login string) (*User, error) {
	var body userPage
	status, err := c.get(ctx, "/user", url.Values{"login": {login}}, &body)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		if len(body.Data) == 0 {
			return nil, ErrNotFound
		}
		return &body.Data[0], nil
	case http.StatusBadRequest:
		return nil, ErrNotFound
	case http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	default:
		return nil, unexpected(status)
	}
}

// UserByID fetches a profile by numeric id.
func (c *Client) UserByID(ctx context.Context, id string) (*User, error) {
	var body userPage
	status, err := c.get(ctx, "/user", url.Values{"id": {id}}, &body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, unexpected(status)
	}
	if len(body.Data) == 0 {
		return nil, ErrNotFound
	}
	return &body.Data[0], nil
}

// LiveStream returns the current broadcast of userID, or nil when the user is offline.
func (c *Client) LiveStream(ctx context.Context, userID string) (*LiveStream, error) {
	var body struct {
		Data []LiveStream `json:"data"`
	}
	status, err := c.get(ctx, "/theta/live", url.Values{"user_id": {userID}}, &body)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		if len(body.Data) == 0 {
			return nil, nil
		}
		return &body.Data[0], nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, unexpected(status)
	}
}

// CategoryName looks up the display name of a category (game) id.
func (c *Client) CategoryName(ctx context.Context, id string) (string, error) {
	var body struct {
		Data []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	status, err := c.get(ctx, "/category", url.Values{"id": {id}}, &body)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", unexpected(status)
	}
	if len(body.Data) == 0 {
		return "", ErrNotFound
	}
	return body.Data[0].Name, nil
}

// FollowerCount returns the total number of followers of userID.
func (c *Client) FollowerCount(ctx context.Context, userID string) (int64, error) {
	var body struct {
		Total int64 `json:"total"`
	}
	status, err := c.get(ctx, "/channel/followers", url.Values{"to_id": {userID}}, &body)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, unexpected(status)
	}
	return body.Total, nil
}
