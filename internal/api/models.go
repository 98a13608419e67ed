package api

import (
	"time"

	"github.com/cardforge/cardforge-api/internal/domain"
)

// SessionResponse is the JSON shape of one generation session.
type SessionResponse struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Category         string     `json:"category,omitempty"`
	CardsGenerated   int        `json:"cards_generated"`
	TotalCards       int        `json:"total_cards"`
	Progress         int        `json:"progress"`
	CurrentOperation string     `json:"current_operation,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// SessionListResponse wraps the user's session history.
type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// ToSessionResponse converts a domain session to its JSON shape.
func ToSessionResponse(s *domain.GenerationSession) SessionResponse {
	progress := 0
	if s.TotalCards > 0 {
		progress = s.CardsGenerated * 100 / s.TotalCards
	}
	if s.Status == domain.SessionStatusCompleted {
		progress = 100
	}
	return SessionResponse{
		ID:               s.ID.String(),
		Status:           string(s.Status),
		Title:            s.Title,
		Description:      s.Description,
		Category:         s.Category,
		CardsGenerated:   s.CardsGenerated,
		TotalCards:       s.TotalCards,
		Progress:         progress,
		CurrentOperation: s.CurrentOperation,
		ErrorMessage:     s.ErrorMessage,
		StartedAt:        s.StartedAt,
		CompletedAt:      s.CompletedAt,
	}
}
