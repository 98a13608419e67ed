package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cardforge/cardforge-api/internal/api/middleware"
	"github.com/cardforge/cardforge-api/internal/api/shared"
	"github.com/cardforge/cardforge-api/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// SessionHandler serves the read-only session endpoints. Clients use them
// to show generation history and to re-check a session's state after a
// reconnect.
type SessionHandler struct {
	sessions store.SessionStore
	logger   *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions store.SessionStore, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger.With(slog.String("component", "session_handler")),
	}
}

// List handles GET /sessions, returning the user's sessions newest first.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
		if limit > maxListLimit {
			limit = maxListLimit
		}
	}

	sessions, err := h.sessions.ListByUser(r.Context(), userID, limit)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := SessionListResponse{Sessions: make([]SessionResponse, 0, len(sessions))}
	for _, session := range sessions {
		resp.Sessions = append(resp.Sessions, ToSessionResponse(session))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Get handles GET /sessions/{id}. A session owned by another user is
// indistinguishable from a missing one.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid session ID")
		return
	}

	session, err := h.sessions.GetByID(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Session not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if session.UserID != userID {
		shared.RespondWithError(w, r, http.StatusNotFound, "Session not found")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ToSessionResponse(session))
}
