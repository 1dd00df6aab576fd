package server

import (
	"errors"
	"net/http"
	"time"
)

// HandleHealthz responds to liveness probes by pinging the settings backend.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.Settings.Ping(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports ready once the settings backend answers and an API token is held.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"settings", func() error { return h.Settings.Ping(r.Context()) }},
		{"credentials", func() error {
			if h.Tokens.Current() == "" {
				return errors.New("no API token; set credentials with PUT /admin/credentials")
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusResponse struct {
	Subscriptions   int        `json:"subscriptions"`
	LastTick        *time.Time `json:"last_tick,omitempty"`
	IntervalSeconds int        `json:"interval_seconds"`
	TokenExpiresAt  *time.Time `json:"token_expires_at,omitempty"`
}

// HandleStatus returns subscription count, last poll time and the effective interval.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Subscriptions:   h.Service.Store.Len(),
		IntervalSeconds: int(h.Poller.Interval(r.Context()).Seconds()),
	}
	if t := h.Poller.LastTick(); !t.IsZero() {
		resp.LastTick = &t
	}
	if t := h.Tokens.ExpiresAt(); !t.IsZero() {
		resp.TokenExpiresAt = &t
	}
	writeJSON(w, http.StatusOK, resp)
}
