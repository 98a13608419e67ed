package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of a generation session.
type SessionStatus string

// Possible session status values
const (
	SessionStatusPreparing  SessionStatus = "preparing"
	SessionStatusGenerating SessionStatus = "generating"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusFailed     SessionStatus = "failed"
	SessionStatusCancelled  SessionStatus = "cancelled"
)

// Field length limits for session input text.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxCategoryLength    = 100
)

// Common validation errors for GenerationSession
var (
	ErrEmptySessionID       = errors.New("session ID cannot be empty")
	ErrEmptySessionUserID   = errors.New("session user ID cannot be empty")
	ErrEmptySessionTitle    = errors.New("session title cannot be empty")
	ErrTitleTooLong         = fmt.Errorf("session title exceeds %d characters", MaxTitleLength)
	ErrDescriptionTooLong   = fmt.Errorf("session description exceeds %d characters", MaxDescriptionLength)
	ErrCategoryTooLong      = fmt.Errorf("session category exceeds %d characters", MaxCategoryLength)
	ErrInvalidSessionStatus = errors.New("invalid session status")
	ErrCardCountExceedsTotal = errors.New("cards generated cannot exceed total cards")
	ErrNegativeCardCount     = errors.New("cards generated cannot be negative")
)

// ErrInvalidTransition is returned when a status change does not follow the
// session state machine. Callers must treat this as a programming or race
// error, not a retryable condition.
var ErrInvalidTransition = errors.New("invalid session status transition")

// validTransitions is the full transition table for the session state machine.
// Terminal states have no outbound edges.
var validTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusPreparing:  {SessionStatusGenerating, SessionStatusFailed, SessionStatusCancelled},
	SessionStatusGenerating: {SessionStatusCompleted, SessionStatusFailed, SessionStatusCancelled},
	SessionStatusCompleted:  {},
	SessionStatusFailed:     {},
	SessionStatusCancelled:  {},
}

// GenerationSession is the persisted record of one card-generation request,
// tracking it from start to terminal outcome. The in-memory orchestrator
// registry holds live coordination state; this record is the source of truth.
type GenerationSession struct {
	ID                uuid.UUID     `json:"id"`
	UserID            uuid.UUID     `json:"user_id"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	Category          string        `json:"category"`
	Status            SessionStatus `json:"status"`
	CardsGenerated    int           `json:"cards_generated"`
	TotalCards        int           `json:"total_cards"`
	CurrentOperation  string        `json:"current_operation"`
	ErrorMessage      string        `json:"error_message,omitempty"`
	ProviderRequestID string        `json:"provider_request_id,omitempty"`
	StartedAt         time.Time     `json:"started_at"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
}

// NewGenerationSession creates a new session in the preparing state.
// TotalCards starts at zero, meaning the count is not yet known; it is set
// once the provider responds with the actual card list.
// Returns an error if validation fails.
func NewGenerationSession(userID uuid.UUID, title, description, category string) (*GenerationSession, error) {
	session := &GenerationSession{
		ID:               uuid.New(),
		UserID:           userID,
		Title:            title,
		Description:      description,
		Category:         category,
		Status:           SessionStatusPreparing,
		CurrentOperation: "Preparing generation",
		StartedAt:        time.Now().UTC(),
	}

	if err := session.Validate(); err != nil {
		return nil, err
	}

	return session, nil
}

// Validate checks if the GenerationSession has valid data.
// Returns an error if any field fails validation.
func (s *GenerationSession) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptySessionID
	}

	if s.UserID == uuid.Nil {
		return ErrEmptySessionUserID
	}

	if s.Title == "" {
		return ErrEmptySessionTitle
	}

	if len(s.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}

	if len(s.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}

	if len(s.Category) > MaxCategoryLength {
		return ErrCategoryTooLong
	}

	if !IsValidSessionStatus(s.Status) {
		return ErrInvalidSessionStatus
	}

	if s.CardsGenerated < 0 {
		return ErrNegativeCardCount
	}

	if s.TotalCards > 0 && s.CardsGenerated > s.TotalCards {
		return ErrCardCountExceedsTotal
	}

	return nil
}

// IsTerminal reports whether the session has reached a state with no
// outbound transitions.
func (s *GenerationSession) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// IsTerminal reports whether the status is completed, failed, or cancelled.
func (st SessionStatus) IsTerminal() bool {
	return st == SessionStatusCompleted ||
		st == SessionStatusFailed ||
		st == SessionStatusCancelled
}

// CanTransitionTo reports whether moving from the current status to the
// target status follows the state machine transition table.
func (st SessionStatus) CanTransitionTo(target SessionStatus) bool {
	for _, next := range validTransitions[st] {
		if next == target {
			return true
		}
	}
	return false
}

// TransitionTo moves the session to the target status, enforcing the
// transition table. On an invalid edge the session is left unchanged and
// ErrInvalidTransition is returned. Reaching a terminal status sets
// CompletedAt; the session record always has CompletedAt set if and only if
// the status is terminal.
func (s *GenerationSession) TransitionTo(target SessionStatus) error {
	if !IsValidSessionStatus(target) {
		return ErrInvalidSessionStatus
	}

	if !s.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, target)
	}

	s.Status = target
	if target.IsTerminal() {
		now := time.Now().UTC()
		s.CompletedAt = &now
	}
	return nil
}

// RecordProgress advances CardsGenerated to the given count, enforcing
// monotonicity and the total-cards ceiling.
func (s *GenerationSession) RecordProgress(count int) error {
	if count < 0 {
		return ErrNegativeCardCount
	}
	if count < s.CardsGenerated {
		return fmt.Errorf("cards generated cannot decrease: %d -> %d", s.CardsGenerated, count)
	}
	if s.TotalCards > 0 && count > s.TotalCards {
		return ErrCardCountExceedsTotal
	}
	s.CardsGenerated = count
	return nil
}

// IsValidSessionStatus checks if the given status is a valid SessionStatus.
func IsValidSessionStatus(status SessionStatus) bool {
	switch status {
	case SessionStatusPreparing, SessionStatusGenerating, SessionStatusCompleted,
		SessionStatusFailed, SessionStatusCancelled:
		return true
	default:
		return false
	}
}
