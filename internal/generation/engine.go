package generation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cardforge/cardforge-api/internal/domain"
)

// Request describes one batch-generation call to the content provider.
type Request struct {
	// SessionID correlates the call with a generation session record.
	SessionID uuid.UUID

	// UserID is the owner of the session.
	UserID uuid.UUID

	// Title, Description, and Category are the user's input describing the
	// deck to generate.
	Title       string
	Description string
	Category    string
}

// Result is the normalized, validated output of one provider call.
type Result struct {
	// Cards is the list of valid cards, in the order the provider produced
	// them. Malformed cards have already been discarded.
	Cards []*domain.Card

	// ProviderRequestID is the provider-side correlation id, when available.
	ProviderRequestID string

	// Duration is the wall-clock time of the call.
	Duration time.Duration

	// InputTokens and OutputTokens carry token accounting when the provider
	// reports it; zero otherwise.
	InputTokens  int
	OutputTokens int
}

// Engine is the boundary between the orchestrator and the external content
// provider. Implementations own no transport state; they turn one request
// into a validated card list or an error from this package's taxonomy.
type Engine interface {
	// Generate invokes the provider and normalizes its output. Individual
	// malformed cards are discarded; the call fails with ErrNoValidCards if
	// none survive. Every call, success or failure, is recorded as an audit
	// entry; a failed audit write never masks the result.
	Generate(ctx context.Context, req Request) (*Result, error)
}
