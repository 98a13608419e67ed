package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cardforge/cardforge-api/internal/domain"
)

// SessionUpdate describes a partial update to a generation session record.
// Nil fields are left untouched.
type SessionUpdate struct {
	// Status, when set, must follow the session state machine relative to
	// the record's current status; otherwise the update is rejected with
	// ErrInvalidTransition.
	Status *domain.SessionStatus

	// CardsGenerated, when set, must not decrease the stored value and must
	// not exceed TotalCards once the total is known.
	CardsGenerated *int

	// TotalCards, when set, records the actual card count reported by the
	// provider. Zero means the count is still unknown.
	TotalCards *int

	// CurrentOperation, when set, replaces the free-text progress label.
	CurrentOperation *string

	// ErrorMessage, when set, records the human-readable failure reason.
	ErrorMessage *string

	// ProviderRequestID, when set, records the provider correlation id.
	ProviderRequestID *string
}

// SessionStore defines the interface for generation session persistence.
type SessionStore interface {
	// Create saves a new session to the store.
	// Returns validation errors from the domain session if data is invalid,
	// or ErrDuplicate if a session with the same ID already exists.
	Create(ctx context.Context, session *domain.GenerationSession) error

	// GetByID retrieves a session by its unique ID.
	// Returns ErrSessionNotFound if the session does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationSession, error)

	// UpdateProgress applies a partial update to an existing session,
	// enforcing the status transition table and monotonic card counts.
	// Returns ErrSessionNotFound if the session does not exist and
	// ErrInvalidTransition if a status change is not a legal edge; in the
	// latter case the record is left unchanged.
	UpdateProgress(ctx context.Context, id uuid.UUID, update SessionUpdate) error

	// ListByUser retrieves the user's sessions, newest first, bounded by limit.
	// Returns an empty slice if the user has no sessions.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.GenerationSession, error)

	// PurgeStale deletes sessions still in non-terminal states older than
	// maxAge, recovering records orphaned by process crashes. Returns the
	// number of sessions deleted.
	PurgeStale(ctx context.Context, maxAge time.Duration) (int64, error)
}
