package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/api/middleware"
	"github.com/dvloznov/statement-insights/internal/session"
)

// SessionStore is the part of the session store the handlers use.
type SessionStore interface {
	Create() *session.Session
	Get(id string) (*session.Session, error)
	Clear(id string) error
}

// SessionsHandler handles session lifecycle endpoints.
type SessionsHandler struct {
	sessions SessionStore
	log      zerolog.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(sessions SessionStore, log zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{
		sessions: sessions,
		log:      log,
	}
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	HasData   bool      `json:"has_data"`
	Records   int       `json:"records"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toSessionResponse(s *session.Session) sessionResponse {
	return sessionResponse{
		SessionID: s.ID,
		HasData:   s.HasData(),
		Records:   s.Set().Len(),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// CreateSession handles POST /api/sessions
func (h *SessionsHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	h.log.Info().Str("session_id", s.ID).Msg("Session created")
	middleware.WriteJSON(w, http.StatusCreated, toSessionResponse(s))
}

// GetSession handles GET /api/sessions/{id}
func (h *SessionsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(w, h.sessions, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toSessionResponse(s))
}

// ClearSession handles DELETE /api/sessions/{id}. The session survives
// with no data loaded.
func (h *SessionsHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sessions.Clear(id); err != nil {
		writeSessionError(w, err)
		return
	}
	h.log.Info().Str("session_id", id).Msg("Session data cleared")
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"session_id": id,
		"status":     "cleared",
	})
}

// loadSession writes the error response itself and reports false when
// the session cannot be used.
func loadSession(w http.ResponseWriter, store SessionStore, id string) (*session.Session, bool) {
	if id == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Session ID is required")
		return nil, false
	}
	s, err := store.Get(id)
	if err != nil {
		writeSessionError(w, err)
		return nil, false
	}
	return s, true
}

func writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}
	middleware.WriteError(w, http.StatusInternalServerError, "Session lookup failed")
}
