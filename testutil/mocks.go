package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/onnwee/thetaalert/thetaapi"
)

// MockThetaServer is an httptest server that mimics the Theta API.
// A default token handler is installed; every other path answers 404 until mocked.
type MockThetaServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	hits     map[string]int
}

// NewMockThetaServer starts a mock API server closed at test cleanup.
func NewMockThetaServer(t *testing.T) *MockThetaServer {
	t.Helper()
	m := &MockThetaServer{
		handlers: make(map[string]http.HandlerFunc),
		hits:     make(map[string]int),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.hits[r.URL.Path]++
		handler, ok := m.handlers[r.URL.Path]
		m.mu.Unlock()
		if ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	m.MockToken("test-bearer", 3600)
	return m
}

// Handle installs a raw handler for path.
func (m *MockThetaServer) Handle(path string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = h
}

// Hits returns how many requests reached path.
func (m *MockThetaServer) Hits(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[path]
}

// Client returns an API client for this server with test credentials.
func (m *MockThetaServer) Client() *thetaapi.Client {
	return &thetaapi.Client{
		BaseURL: m.URL,
		Tokens:  thetaapi.NewTokenSource(m.URL, "test-client", "test-secret", "test-access"),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}

// MockStatus makes path answer with a bare status code.
func (m *MockThetaServer) MockStatus(path string, status int) {
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
}

// MockToken answers the token endpoint with a bearer token.
func (m *MockThetaServer) MockToken(accessToken string, expiresIn int) {
	m.Handle("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"access_token": accessToken,
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		})
	})
}

// MockUser answers /user lookups for one account, by login (case-insensitive) or id.
// Lookups for anything else get an empty data array.
func (m *MockThetaServer) MockUser(id, login, profileImageURL string, viewCount int64) {
	m.Handle("/user", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		match := q.Get("id") == id || (q.Get("login") != "" && strings.EqualFold(q.Get("login"), login))
		data := []map[string]any{}
		if match {
			data = append(data, map[string]any{
				"id":                id,
				"login":             login,
				"display_name":      login,
				"profile_image_url": profileImageURL,
				"view_count":        viewCount,
			})
		}
		writeJSON(w, map[string]any{"data": data})
	})
}

// MockLive answers the live-status endpoint. A nil stream means offline.
func (m *MockThetaServer) MockLive(stream map[string]any) {
	m.Handle("/theta/live", func(w http.ResponseWriter, r *http.Request) {
		data := []map[string]any{}
		if stream != nil {
			data = append(data, stream)
		}
		writeJSON(w, map[string]any{"data": data})
	})
}

// MockCategory answers category lookups with one name.
func (m *MockThetaServer) MockCategory(id, name string) {
	m.Handle("/category", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": []map[string]string{{"id": id, "name": name}}})
	})
}

// MockFollowers answers follower lookups with total.
func (m *MockThetaServer) MockFollowers(total int64) {
	m.Handle("/channel/followers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"total": total})
	})
}

// LiveEntry builds a live-status entry.
func LiveEntry(userID, userName, title, kind, gameID string) map[string]any {
	return map[string]any{
		"user_id":       userID,
		"user_name":     userName,
		"title":         title,
		"type":          kind,
		"game_id":       gameID,
		"thumbnail_url": "https://previews.theta.tv/" + userName + "-{width}x{height}.jpg",
	}
}
