package domain

import (
	"errors"

	"github.com/google/uuid"
)

// Card-specific validation errors
var (
	// ErrCardIDEmpty is returned when a card ID is empty or nil.
	ErrCardIDEmpty = errors.New("card ID cannot be empty")

	// ErrCardSessionIDEmpty is returned when a card's session ID is empty or nil.
	ErrCardSessionIDEmpty = errors.New("card session ID cannot be empty")

	// ErrCardContentEmpty is returned when a card has no populated side.
	ErrCardContentEmpty = errors.New("card must have at least one populated side")
)

// Card represents a single flashcard produced by a generation session.
// A side is populated when it carries text or an image reference; a card
// with no populated side is malformed and is discarded during provider
// output validation.
type Card struct {
	ID            uuid.UUID `json:"id"`
	SessionID     uuid.UUID `json:"session_id"`
	FrontText     string    `json:"front_text,omitempty"`
	BackText      string    `json:"back_text,omitempty"`
	FrontImageRef string    `json:"front_image_ref,omitempty"`
	BackImageRef  string    `json:"back_image_ref,omitempty"`
	Hint          string    `json:"hint,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
}

// NewCard creates a new Card belonging to the given session.
// Returns an error if validation fails.
func NewCard(sessionID uuid.UUID, frontText, backText, frontImageRef, backImageRef string) (*Card, error) {
	card := &Card{
		ID:            uuid.New(),
		SessionID:     sessionID,
		FrontText:     frontText,
		BackText:      backText,
		FrontImageRef: frontImageRef,
		BackImageRef:  backImageRef,
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	return card, nil
}

// Validate checks if the Card has valid data.
// Returns an error if any field fails validation.
func (c *Card) Validate() error {
	if c.ID == uuid.Nil {
		return ErrCardIDEmpty
	}

	if c.SessionID == uuid.Nil {
		return ErrCardSessionIDEmpty
	}

	if !c.HasContent() {
		return ErrCardContentEmpty
	}

	return nil
}

// HasContent reports whether at least one side of the card carries text or
// an image reference.
func (c *Card) HasContent() bool {
	return c.FrontText != "" || c.BackText != "" ||
		c.FrontImageRef != "" || c.BackImageRef != ""
}
