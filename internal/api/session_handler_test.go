package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardforge/cardforge-api/internal/api/shared"
	"github.com/cardforge/cardforge-api/internal/domain"
	"github.com/cardforge/cardforge-api/internal/mocks"
	"github.com/cardforge/cardforge-api/internal/platform/logger"
	"github.com/cardforge/cardforge-api/internal/store"
)

func newSessionRouter(sessions store.SessionStore) http.Handler {
	log, _ := logger.NewTestLogger()
	handler := NewSessionHandler(sessions, log)

	r := chi.NewRouter()
	r.Get("/sessions", handler.List)
	r.Get("/sessions/{id}", handler.Get)
	return r
}

func authedRequest(t *testing.T, method, target string, userID uuid.UUID) *http.Request {
	t.Helper()
	r := httptest.NewRequest(method, target, nil)
	return r.WithContext(shared.SetUserID(r.Context(), userID))
}

func testSession(t *testing.T, userID uuid.UUID, status domain.SessionStatus) *domain.GenerationSession {
	t.Helper()
	session, err := domain.NewGenerationSession(userID, "Spanish verbs", "common irregular verbs", "language")
	require.NoError(t, err)
	if status != domain.SessionStatusPreparing {
		require.NoError(t, session.TransitionTo(domain.SessionStatusGenerating))
		if status != domain.SessionStatusGenerating {
			require.NoError(t, session.TransitionTo(status))
		}
	}
	return session
}

func TestSessionList(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	sessions := []*domain.GenerationSession{
		testSession(t, userID, domain.SessionStatusCompleted),
		testSession(t, userID, domain.SessionStatusGenerating),
	}
	sessions[0].TotalCards = 10
	sessions[0].CardsGenerated = 10

	var gotLimit int
	mockStore := &mocks.MockSessionStore{
		ListByUserFn: func(_ context.Context, gotUser uuid.UUID, limit int) ([]*domain.GenerationSession, error) {
			assert.Equal(t, userID, gotUser)
			gotLimit = limit
			return sessions, nil
		},
	}
	router := newSessionRouter(mockStore)

	t.Run("default limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodGet, "/sessions", userID))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, defaultListLimit, gotLimit)

		var resp SessionListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Sessions, 2)
		assert.Equal(t, string(domain.SessionStatusCompleted), resp.Sessions[0].Status)
		assert.Equal(t, 100, resp.Sessions[0].Progress)
	})

	t.Run("explicit limit is capped", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodGet, "/sessions?limit=500", userID))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, maxListLimit, gotLimit)
	})

	t.Run("invalid limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodGet, "/sessions?limit=abc", userID))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestSessionGet(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	session := testSession(t, userID, domain.SessionStatusFailed)
	session.ErrorMessage = "generation timed out after 5m0s"

	mockStore := &mocks.MockSessionStore{
		GetByIDFn: func(_ context.Context, id uuid.UUID) (*domain.GenerationSession, error) {
			if id == session.ID {
				return session, nil
			}
			return nil, store.ErrSessionNotFound
		},
	}
	router := newSessionRouter(mockStore)

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodGet, "/sessions/"+session.ID.String(), userID))

		require.Equal(t, http.StatusOK, w.Code)
		var resp SessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, session.ID.String(), resp.ID)
		assert.Equal(t, string(domain.SessionStatusFailed), resp.Status)
		assert.Equal(t, "generation timed out after 5m0s", resp.ErrorMessage)
		require.NotNil(t, resp.CompletedAt)
		assert.WithinDuration(t, time.Now(), *resp.CompletedAt, time.Minute)
	})

	t.Run("missing session", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodGet, "/sessions/"+uuid.NewString(), userID))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("other user's session looks missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodGet, "/sessions/"+session.ID.String(), uuid.New()))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodGet, "/sessions/not-a-uuid", userID))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSessionList_StoreFailure(t *testing.T) {
	t.Parallel()

	mockStore := &mocks.MockSessionStore{Err: assert.AnError}
	router := newSessionRouter(mockStore)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(t, http.MethodGet, "/sessions", uuid.New()))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}
