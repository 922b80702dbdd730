package handlers

import "net/http"

// StatusHandler serves the loop snapshot.
type StatusHandler struct {
	pilot StatusSource
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(pilot StatusSource) *StatusHandler {
	return &StatusHandler{pilot: pilot}
}

// Get handles GET /status.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.pilot == nil {
		ServiceUnavailable(w, "pilot not initialized")
		return
	}
	writeJSON(w, http.StatusOK, okResponse(h.pilot.Status()))
}
