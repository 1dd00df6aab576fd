package thetaapi

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the requested user or channel does not exist upstream.
	ErrNotFound = errors.New("theta: not found")
	// ErrInvalidCredentials means the client id or bearer token was rejected.
	ErrInvalidCredentials = errors.New("theta: invalid credentials")
	// ErrMissingCredentials means no client id is configured.
	ErrMissingCredentials = errors.New("theta: missing client id")
)

// APIError is any other failure talking to the API: transport errors and unexpected statuses.
type APIError struct {
	Status int
	Body   string
	Err    error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("theta api: %v", e.Err)
	}
	return fmt.Sprintf("theta api: unexpected status %d: %s", e.Status, e.Body)
}

func (e *APIError) Unwrap() error { return e.Err }
