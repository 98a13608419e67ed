package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerationSession(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("creates session with valid input", func(t *testing.T) {
		session, err := NewGenerationSession(userID, "Spanish Verbs", "Common irregular verbs", "languages")

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, session.ID)
		assert.Equal(t, userID, session.UserID)
		assert.Equal(t, SessionStatusPreparing, session.Status)
		assert.Equal(t, 0, session.CardsGenerated)
		assert.Equal(t, 0, session.TotalCards, "total cards is unknown until the provider responds")
		assert.Nil(t, session.CompletedAt)
		assert.False(t, session.StartedAt.IsZero())
	})

	t.Run("fails with empty user ID", func(t *testing.T) {
		session, err := NewGenerationSession(uuid.Nil, "Title", "Desc", "cat")

		assert.ErrorIs(t, err, ErrEmptySessionUserID)
		assert.Nil(t, session)
	})

	t.Run("fails with empty title", func(t *testing.T) {
		session, err := NewGenerationSession(userID, "", "Desc", "cat")

		assert.ErrorIs(t, err, ErrEmptySessionTitle)
		assert.Nil(t, session)
	})

	t.Run("fails with oversized fields", func(t *testing.T) {
		_, err := NewGenerationSession(userID, strings.Repeat("a", MaxTitleLength+1), "Desc", "cat")
		assert.ErrorIs(t, err, ErrTitleTooLong)

		_, err = NewGenerationSession(userID, "Title", strings.Repeat("a", MaxDescriptionLength+1), "cat")
		assert.ErrorIs(t, err, ErrDescriptionTooLong)

		_, err = NewGenerationSession(userID, "Title", "Desc", strings.Repeat("a", MaxCategoryLength+1))
		assert.ErrorIs(t, err, ErrCategoryTooLong)
	})
}

func TestSessionStatusTransitionTable(t *testing.T) {
	t.Parallel()

	allStatuses := []SessionStatus{
		SessionStatusPreparing,
		SessionStatusGenerating,
		SessionStatusCompleted,
		SessionStatusFailed,
		SessionStatusCancelled,
	}

	allowed := map[SessionStatus]map[SessionStatus]bool{
		SessionStatusPreparing: {
			SessionStatusGenerating: true,
			SessionStatusFailed:     true,
			SessionStatusCancelled:  true,
		},
		SessionStatusGenerating: {
			SessionStatusCompleted: true,
			SessionStatusFailed:    true,
			SessionStatusCancelled: true,
		},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			from, to := from, to
			t.Run(string(from)+"_to_"+string(to), func(t *testing.T) {
				session := &GenerationSession{
					ID:     uuid.New(),
					UserID: uuid.New(),
					Title:  "Title",
					Status: from,
				}

				err := session.TransitionTo(to)

				if allowed[from][to] {
					require.NoError(t, err)
					assert.Equal(t, to, session.Status)
					if to.IsTerminal() {
						assert.NotNil(t, session.CompletedAt)
					} else {
						assert.Nil(t, session.CompletedAt)
					}
				} else {
					assert.ErrorIs(t, err, ErrInvalidTransition)
					assert.Equal(t, from, session.Status, "session must be left unchanged on rejection")
					assert.Nil(t, session.CompletedAt)
				}
			})
		}
	}
}

func TestSessionStatusIsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, SessionStatusPreparing.IsTerminal())
	assert.False(t, SessionStatusGenerating.IsTerminal())
	assert.True(t, SessionStatusCompleted.IsTerminal())
	assert.True(t, SessionStatusFailed.IsTerminal())
	assert.True(t, SessionStatusCancelled.IsTerminal())
}

func TestRecordProgress(t *testing.T) {
	t.Parallel()

	newSession := func() *GenerationSession {
		return &GenerationSession{
			ID:         uuid.New(),
			UserID:     uuid.New(),
			Title:      "Title",
			Status:     SessionStatusGenerating,
			TotalCards: 5,
		}
	}

	t.Run("advances monotonically", func(t *testing.T) {
		session := newSession()

		for i := 1; i <= 5; i++ {
			require.NoError(t, session.RecordProgress(i))
			assert.Equal(t, i, session.CardsGenerated)
		}
	})

	t.Run("rejects decreasing count", func(t *testing.T) {
		session := newSession()
		require.NoError(t, session.RecordProgress(3))

		err := session.RecordProgress(2)

		assert.Error(t, err)
		assert.Equal(t, 3, session.CardsGenerated)
	})

	t.Run("rejects count above total", func(t *testing.T) {
		session := newSession()

		err := session.RecordProgress(6)

		assert.ErrorIs(t, err, ErrCardCountExceedsTotal)
		assert.Equal(t, 0, session.CardsGenerated)
	})

	t.Run("rejects negative count", func(t *testing.T) {
		session := newSession()

		assert.ErrorIs(t, session.RecordProgress(-1), ErrNegativeCardCount)
	})

	t.Run("allows any count while total is unknown", func(t *testing.T) {
		session := newSession()
		session.TotalCards = 0

		require.NoError(t, session.RecordProgress(12))
		assert.Equal(t, 12, session.CardsGenerated)
	})
}

func TestCardValidate(t *testing.T) {
	t.Parallel()

	sessionID := uuid.New()

	t.Run("accepts card with front text only", func(t *testing.T) {
		card, err := NewCard(sessionID, "¿Cómo estás?", "", "", "")

		require.NoError(t, err)
		assert.True(t, card.HasContent())
	})

	t.Run("accepts card with image reference only", func(t *testing.T) {
		card, err := NewCard(sessionID, "", "", "images/verb-chart.png", "")

		require.NoError(t, err)
		assert.True(t, card.HasContent())
	})

	t.Run("rejects card with no populated side", func(t *testing.T) {
		card, err := NewCard(sessionID, "", "", "", "")

		assert.ErrorIs(t, err, ErrCardContentEmpty)
		assert.Nil(t, card)
	})

	t.Run("rejects card without session ID", func(t *testing.T) {
		card, err := NewCard(uuid.Nil, "front", "back", "", "")

		assert.ErrorIs(t, err, ErrCardSessionIDEmpty)
		assert.Nil(t, card)
	})
}
