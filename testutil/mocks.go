// Package testutil holds shared test doubles, chiefly a mock osu! API server.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// MockOsuServer creates a test server that mocks osu! API v2 responses.
// Unregistered paths answer 404 like the real API does for missing entities.
type MockOsuServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc

	mu       sync.Mutex
	requests []string
}

// NewMockOsuServer creates a new mock osu! API server.
func NewMockOsuServer(t *testing.T) *MockOsuServer {
	t.Helper()
	m := &MockOsuServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, r.Method+" "+r.URL.Path)
		m.mu.Unlock()
		if handler, ok := m.Handlers[r.Method+" "+r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":null}`))
	}))
	t.Cleanup(m.Close)
	return m
}

// Requests returns the "METHOD /path" lines seen so far.
func (m *MockOsuServer) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

// CountPrefix returns how many requests started with prefix.
func (m *MockOsuServer) CountPrefix(prefix string) int {
	n := 0
	for _, r := range m.Requests() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

// MockJSON registers a JSON response for method and path.
func (m *MockOsuServer) MockJSON(method, path string, body any) {
	m.Handlers[method+" "+path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // test mock response
	}
}

// MockStatus registers a bare status response for method and path.
func (m *MockOsuServer) MockStatus(method, path string, status int) {
	m.Handlers[method+" "+path] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}
}

// MockBeatmap adds a handler for GET /beatmaps/{id} with the set embedded.
func (m *MockOsuServer) MockBeatmap(id, setID int, version string, stars float64, length int, bpm float64, status, mode, artist, title string) {
	m.MockJSON(http.MethodGet, "/beatmaps/"+itoa(id), map[string]any{
		"id":                id,
		"beatmapset_id":     setID,
		"difficulty_rating": stars,
		"mode":              mode,
		"status":            status,
		"total_length":      length,
		"version":           version,
		"bpm":               bpm,
		"beatmapset": map[string]any{
			"id":     setID,
			"artist": artist,
			"title":  title,
			"status": status,
		},
	})
}

// MockAttributes adds a handler for POST /beatmaps/{id}/attributes.
func (m *MockOsuServer) MockAttributes(id int, stars float64) {
	m.MockJSON(http.MethodPost, "/beatmaps/"+itoa(id)+"/attributes", map[string]any{
		"attributes": map[string]any{"star_rating": stars, "max_combo": 1000},
	})
}

// MockUser adds a handler for GET /users/{key}.
func (m *MockOsuServer) MockUser(key string, id int, username, country, mode string, globalRank, countryRank int, pp float64) {
	m.MockJSON(http.MethodGet, "/users/"+key, map[string]any{
		"id":           id,
		"username":     username,
		"country_code": country,
		"playmode":     mode,
		"statistics": map[string]any{
			"global_rank":  globalRank,
			"country_rank": countryRank,
			"pp":           pp,
		},
	})
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
