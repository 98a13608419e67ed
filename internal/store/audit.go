package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/cardforge/cardforge-api/internal/domain"
)

// AuditStore defines the interface for generation audit persistence.
type AuditStore interface {
	// Create saves an audit entry for one provider call.
	Create(ctx context.Context, audit *domain.GenerationAudit) error

	// ListByUser retrieves the user's audit entries, newest first, bounded
	// by limit.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.GenerationAudit, error)
}
