package thetaapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/onnwee/thetaalert/telemetry"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// RefreshWindow is how close to expiry a cached bearer token may get before it is renewed.
const RefreshWindow = 60 * time.Second

// TokenSource fetches and caches the Theta bearer token.
// The token call is an OAuth client-credentials request whose grant_type is overridden
// to "access_token" and which carries the platform-issued access token as an extra param.
type TokenSource struct {
	TokenURL   string
	HTTPClient *http.Client
	Clock      clockwork.Clock

	credMu       sync.RWMutex
	clientID     string
	clientSecret string
	accessToken  string

	refreshMu sync.Mutex

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// NewTokenSource returns a TokenSource for the API rooted at baseURL.
func NewTokenSource(baseURL, clientID, clientSecret, accessToken string) *TokenSource {
	return &TokenSource{
		TokenURL:     baseURL + "/oauth/token",
		clientID:     clientID,
		clientSecret: clientSecret,
		accessToken:  accessToken,
	}
}

func (ts *TokenSource) clock() clockwork.Clock {
	if ts.Clock != nil {
		return ts.Clock
	}
	return clockwork.NewRealClock()
}

// SetCredentials swaps the credentials and drops the cached bearer token.
func (ts *TokenSource) SetCredentials(clientID, clientSecret, accessToken string) {
	ts.credMu.Lock()
	ts.clientID, ts.clientSecret, ts.accessToken = clientID, clientSecret, accessToken
	ts.credMu.Unlock()

	ts.mu.Lock()
	ts.token, ts.expiresAt = "", time.Time{}
	ts.mu.Unlock()
}

// ClientID returns the configured client id, sent as a header on every API call.
func (ts *TokenSource) ClientID() string {
	ts.credMu.RLock()
	defer ts.credMu.RUnlock()
	return ts.clientID
}

// Current returns the cached bearer token or "" when none has been acquired.
func (ts *TokenSource) Current() string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.token
}

// ExpiresAt returns the expiry of the cached token (zero when none).
func (ts *TokenSource) ExpiresAt() time.Time {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.expiresAt
}

// NeedsRefresh reports whether there is no cached token or it expires within RefreshWindow.
func (ts *TokenSource) NeedsRefresh() bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.token == "" || ts.expiresAt.Sub(ts.clock().Now()) <= RefreshWindow
}

// RefreshIfNeeded renews the bearer token when NeedsRefresh says so.
// On failure the previous cache (possibly empty) is left untouched.
func (ts *TokenSource) RefreshIfNeeded(ctx context.Context) error {
	if !ts.NeedsRefresh() {
		return nil
	}
	ts.refreshMu.Lock()
	defer ts.refreshMu.Unlock()
	// another caller may have refreshed while we waited
	if !ts.NeedsRefresh() {
		return nil
	}
	return ts.refresh(ctx)
}

func (ts *TokenSource) refresh(ctx context.Context) error {
	ts.credMu.RLock()
	cc := clientcredentials.Config{
		ClientID:     ts.clientID,
		ClientSecret: ts.clientSecret,
		TokenURL:     ts.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
		EndpointParams: url.Values{
			"access_token": {ts.accessToken},
			"grant_type":   {"access_token"},
		},
	}
	ts.credMu.RUnlock()
	if cc.ClientID == "" {
		slog.Warn("theta token refresh skipped: client id not set", slog.String("component", "theta_token"))
		return ErrMissingCredentials
	}

	if ts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, ts.HTTPClient)
	}
	tok, err := cc.Token(ctx)
	telemetry.CountTokenRefresh(err)
	if err != nil {
		logTokenError(err)
		return fmt.Errorf("theta token request: %w", err)
	}

	now := ts.clock().Now()
	var expiresAt time.Time
	switch {
	case tok.ExpiresIn > 0:
		expiresAt = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	case !tok.Expiry.IsZero():
		expiresAt = tok.Expiry
	default:
		// unknown lifetime, assume an hour
		expiresAt = now.Add(60 * time.Minute)
	}

	ts.mu.Lock()
	ts.token = tok.AccessToken
	ts.expiresAt = expiresAt
	ts.mu.Unlock()
	slog.Debug("theta bearer token refreshed", slog.Time("expires_at", expiresAt), slog.String("component", "theta_token"))
	return nil
}

// logTokenError reports token failures the way the platform describes them.
func logTokenError(err error) {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) || rerr.Response == nil {
		slog.Error("theta token request failed", slog.Any("err", err), slog.String("component", "theta_token"))
		return
	}
	status := rerr.Response.StatusCode
	var body struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(rerr.Body, &body)
	switch {
	case status == http.StatusBadRequest && body.Message == "invalid client":
		slog.Error("theta API request failed authentication: client id is invalid", slog.String("component", "theta_token"))
	case status == http.StatusForbidden && body.Message == "invalid client secret":
		slog.Error("theta API request failed authentication: client secret is invalid", slog.String("component", "theta_token"))
	case body.Message != "":
		slog.Error("theta token request failed", slog.Int("status", status), slog.String("message", body.Message), slog.String("component", "theta_token"))
	default:
		slog.Error("theta token request failed", slog.Int("status", status), slog.String("component", "theta_token"))
	}
}
