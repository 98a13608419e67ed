package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cardforge/cardforge-api/internal/domain"
	"github.com/cardforge/cardforge-api/internal/platform/logger"
	"github.com/cardforge/cardforge-api/internal/store"
)

// AuditStore implements the store.AuditStore interface using a PostgreSQL
// database as the storage backend.
type AuditStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewAuditStore creates a PostgreSQL implementation of store.AuditStore.
func NewAuditStore(db store.DBTX, logger *slog.Logger) *AuditStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &AuditStore{
		db:     db,
		logger: logger.With(slog.String("component", "audit_store")),
	}
}

// Ensure AuditStore implements store.AuditStore interface
var _ store.AuditStore = (*AuditStore)(nil)

// Create implements store.AuditStore.Create.
func (s *AuditStore) Create(ctx context.Context, audit *domain.GenerationAudit) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO generation_audits (
			id, user_id, session_id, prompt, model_name, status,
			error_message, duration_ms, input_tokens, output_tokens, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		audit.ID,
		audit.UserID,
		audit.SessionID,
		audit.Prompt,
		audit.ModelName,
		audit.Status,
		nullString(audit.ErrorMessage),
		audit.DurationMs,
		audit.InputTokens,
		audit.OutputTokens,
		audit.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create generation audit",
			slog.String("error", err.Error()),
			slog.String("audit_id", audit.ID.String()))
		return MapError(err)
	}

	return nil
}

// ListByUser implements store.AuditStore.ListByUser.
func (s *AuditStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.GenerationAudit, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, session_id, prompt, model_name, status,
			error_message, duration_ms, input_tokens, output_tokens, created_at
		FROM generation_audits
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	audits := make([]*domain.GenerationAudit, 0)
	for rows.Next() {
		var audit domain.GenerationAudit
		var sessionID uuid.NullUUID
		var errorMessage sql.NullString

		err := rows.Scan(
			&audit.ID,
			&audit.UserID,
			&sessionID,
			&audit.Prompt,
			&audit.ModelName,
			&audit.Status,
			&errorMessage,
			&audit.DurationMs,
			&audit.InputTokens,
			&audit.OutputTokens,
			&audit.CreatedAt,
		)
		if err != nil {
			return nil, MapError(err)
		}

		audit.ErrorMessage = errorMessage.String
		if sessionID.Valid {
			id := sessionID.UUID
			audit.SessionID = &id
		}
		audits = append(audits, &audit)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return audits, nil
}
