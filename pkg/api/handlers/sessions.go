package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/dagpilot/internal/logger"
	"github.com/marmos91/dagpilot/pkg/catalog"
)

// SessionStore is the read side of the session catalog.
type SessionStore interface {
	List(ctx context.Context) ([]*catalog.Session, error)
	Get(ctx context.Context, id string) (*catalog.Session, error)
	Healthcheck(ctx context.Context) error
}

// SessionHandler serves archived sessions.
type SessionHandler struct {
	store SessionStore
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(store SessionStore) *SessionHandler {
	return &SessionHandler{store: store}
}

// List handles GET /sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.List(r.Context())
	if err != nil {
		logger.Error("List sessions failed", logger.KeyError, err)
		InternalServerError(w, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*catalog.Session{}
	}
	writeJSON(w, http.StatusOK, okResponse(sessions))
}

// Get handles GET /sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := h.store.Get(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		NotFound(w, "Session not found")
		return
	}
	if err != nil {
		logger.Error("Get session failed", logger.KeySessionID, id, logger.KeyError, err)
		InternalServerError(w, "Failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, okResponse(sess))
}
