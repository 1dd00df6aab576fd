package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestAdminAuthMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		opts           Options
		reqUsername    string
		reqPassword    string
		reqToken       string
		expectedStatus int
	}{
		{
			name:           "no auth configured - allows request",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "valid basic auth",
			opts:           Options{AdminUsername: "admin", AdminPassword: "secret123"},
			reqUsername:    "admin",
			reqPassword:    "secret123",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid basic auth password",
			opts:           Options{AdminUsername: "admin", AdminPassword: "secret123"},
			reqUsername:    "admin",
			reqPassword:    "wrong",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "valid token auth",
			opts:           Options{AdminToken: "test-token-12345"},
			reqToken:       "test-token-12345",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid token",
			opts:           Options{AdminToken: "test-token-12345"},
			reqToken:       "nope",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "username without password does not enable basic auth",
			opts:           Options{AdminUsername: "admin"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "basic auth accepted when token also configured",
			opts:           Options{AdminUsername: "admin", AdminPassword: "pw", AdminToken: "tok"},
			reqUsername:    "admin",
			reqPassword:    "pw",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := adminAuth(okHandler(), authFromOptions(tt.opts))
			req := httptest.NewRequest(http.MethodGet, "/admin/alerts", nil)
			if tt.reqUsername != "" || tt.reqPassword != "" {
				req.SetBasicAuth(tt.reqUsername, tt.reqPassword)
			}
			if tt.reqToken != "" {
				req.Header.Set("X-Admin-Token", tt.reqToken)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if rr.Code == http.StatusUnauthorized && rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header on 401 response")
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter := newIPRateLimiter(ctx, 1, 3)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	for i := 1; i <= 3; i++ {
		if !limiter.allow("192.168.1.1") {
			t.Errorf("request %d should be allowed", i)
		}
	}
	if limiter.allow("192.168.1.1") {
		t.Error("4th request should be blocked")
	}
	if !limiter.allow("192.168.1.2") {
		t.Error("other IPs have their own bucket")
	}

	now = now.Add(time.Second)
	if !limiter.allow("192.168.1.1") {
		t.Error("bucket should refill after one second")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter := newIPRateLimiter(ctx, 0, 1)
	for i := 0; i < 20; i++ {
		if !limiter.allow("192.168.1.1") {
			t.Fatalf("request %d blocked with limiting disabled", i+1)
		}
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter := newIPRateLimiter(ctx, 1, 1)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }
	limiter.allow("10.0.0.1")

	now = now.Add(visitorExpiry + time.Second)
	limiter.cleanup()
	limiter.mu.Lock()
	n := len(limiter.visitors)
	limiter.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected idle visitor removed, %d left", n)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := rateLimitMiddleware(okHandler(), newIPRateLimiter(ctx, 0.001, 2))

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/admin/alerts/toggle", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != want {
			t.Errorf("request %d: expected %d, got %d", i+1, want, rr.Code)
		}
		if want == http.StatusTooManyRequests && rr.Header().Get("Retry-After") == "" {
			t.Error("expected Retry-After header")
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"ipv4 with port", "192.168.1.100:12345", "", "192.168.1.100"},
		{"ipv4 without port", "192.168.1.100", "", "192.168.1.100"},
		{"ipv6 with port", "[2001:db8::1]:8080", "", "2001:db8::1"},
		{"ipv6 without port", "[2001:db8::1]", "", "2001:db8::1"},
		{"forwarded chain", "10.0.0.1:80", "203.0.113.7, 10.0.0.2", "203.0.113.7"},
		{"forwarded single", "10.0.0.1:80", " 203.0.113.8 ", "203.0.113.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCORSConfig(t *testing.T) {
	tests := []struct {
		name          string
		origins       []string
		origin        string
		expectedAllow string
	}{
		{"permissive without origins", nil, "http://anything.test", "*"},
		{"allowed origin", []string{"https://admin.example.com"}, "https://admin.example.com", "https://admin.example.com"},
		{"disallowed origin", []string{"https://admin.example.com"}, "https://evil.test", ""},
		{"wildcard subdomain", []string{"*.example.com"}, "https://ops.example.com", "https://ops.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := withCORS(okHandler(), newCORSConfig(tt.origins))
			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.expectedAllow {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.expectedAllow)
			}
		})
	}
}

func TestCORSPreflightRequest(t *testing.T) {
	handler := withCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight should not reach the handler")
	}), newCORSConfig(nil))
	req := httptest.NewRequest(http.MethodOptions, "/admin/check", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rr.Code)
	}
}

func TestSplitOrigins(t *testing.T) {
	got := SplitOrigins(" https://a.test, ,https://b.test ")
	if len(got) != 2 || got[0] != "https://a.test" || got[1] != "https://b.test" {
		t.Fatalf("SplitOrigins() = %v", got)
	}
	if SplitOrigins("") != nil {
		t.Fatal("expected nil for empty input")
	}
}
