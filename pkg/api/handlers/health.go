package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/marmos91/dagpilot/pkg/pilot"
)

// StatusSource exposes the control loop's live counters.
type StatusSource interface {
	Status() pilot.Status
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	pilot    StatusSource
	sessions SessionStore
}

// NewHealthHandler creates a new health handler. sessions may be nil when
// the catalog is disabled.
func NewHealthHandler(pilot StatusSource, sessions SessionStore) *HealthHandler {
	return &HealthHandler{pilot: pilot, sessions: sessions}
}

// Liveness handles GET /health. It succeeds while the process serves HTTP.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "dagpilot",
	}))
}

// Readiness handles GET /health/ready.
//
// Ready means the loop has finished its handshake and is driving (RUNNING or
// RETRAINING) and the catalog, when configured, answers a read transaction.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.pilot == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("pilot not initialized"))
		return
	}

	st := h.pilot.Status()
	data := map[string]any{
		"session_id": st.SessionID,
		"state":      st.State,
		"ticks":      st.Ticks,
	}

	if !st.State.Active() {
		writeJSON(w, http.StatusServiceUnavailable,
			unhealthyResponseWithData(fmt.Sprintf("loop is %s", st.State), data))
		return
	}

	if h.sessions != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.sessions.Healthcheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable,
				unhealthyResponseWithData(fmt.Sprintf("catalog: %v", err), data))
			return
		}
	}

	writeJSON(w, http.StatusOK, healthyResponse(data))
}
