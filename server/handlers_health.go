package server

import (
	"encoding/json"
	"net/http"
)

// HandleHealthz reports that the process is serving.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports 200 once both chat connections are up, 503 before.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	code := http.StatusOK
	if !h.ready.Ready() {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	// Set headers before writing status code
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      status,
		"connections": h.ready.Status(),
	})
}

// HandleStatus reports relay queue depth and connection state.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	depth := 0
	if h.queue != nil {
		depth = h.queue.Len()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"relay_pending": depth,
		"connections":   h.ready.Status(),
	})
}
