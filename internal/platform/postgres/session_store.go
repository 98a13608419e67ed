package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cardforge/cardforge-api/internal/domain"
	"github.com/cardforge/cardforge-api/internal/platform/logger"
	"github.com/cardforge/cardforge-api/internal/store"
)

// SessionStore implements the store.SessionStore interface using a
// PostgreSQL database as the storage backend.
type SessionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSessionStore creates a PostgreSQL implementation of store.SessionStore.
// It accepts a database connection or transaction managed by the caller.
// If logger is nil, a default logger will be used.
func NewSessionStore(db store.DBTX, logger *slog.Logger) *SessionStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &SessionStore{
		db:     db,
		logger: logger.With(slog.String("component", "session_store")),
	}
}

// Ensure SessionStore implements store.SessionStore interface
var _ store.SessionStore = (*SessionStore)(nil)

const sessionColumns = `id, user_id, title, description, category, status,
	cards_generated, total_cards, current_operation, error_message,
	provider_request_id, started_at, completed_at`

// Create implements store.SessionStore.Create.
func (s *SessionStore) Create(ctx context.Context, session *domain.GenerationSession) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := session.Validate(); err != nil {
		log.Warn("session validation failed during create",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return err
	}

	query := `
		INSERT INTO generation_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		session.ID,
		session.UserID,
		session.Title,
		session.Description,
		session.Category,
		session.Status,
		session.CardsGenerated,
		session.TotalCards,
		session.CurrentOperation,
		nullString(session.ErrorMessage),
		nullString(session.ProviderRequestID),
		session.StartedAt,
		session.CompletedAt,
	)
	if err != nil {
		log.Error("failed to create generation session",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()),
			slog.String("user_id", session.UserID.String()))
		return MapError(err)
	}

	log.Debug("generation session created",
		slog.String("session_id", session.ID.String()),
		slog.String("user_id", session.UserID.String()))
	return nil
}

// GetByID implements store.SessionStore.GetByID.
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *SessionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM generation_sessions WHERE id = $1`

	session, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrSessionNotFound
		}
		return nil, MapError(err)
	}

	return session, nil
}

// UpdateProgress implements store.SessionStore.UpdateProgress.
//
// Status changes are enforced against the transition table inside the
// UPDATE's WHERE clause, so a race between two terminal transitions is
// settled by the database: the first writer wins and the loser observes
// store.ErrInvalidTransition with the record unchanged. Card counts only
// ever move forward.
func (s *SessionStore) UpdateProgress(ctx context.Context, id uuid.UUID, update store.SessionUpdate) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	setClauses := make([]string, 0, 6)
	args := make([]any, 0, 8)
	args = append(args, id)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if update.CardsGenerated != nil {
		setClauses = append(setClauses,
			"cards_generated = GREATEST(cards_generated, "+arg(*update.CardsGenerated)+")")
	}
	if update.TotalCards != nil {
		setClauses = append(setClauses, "total_cards = "+arg(*update.TotalCards))
	}
	if update.CurrentOperation != nil {
		setClauses = append(setClauses, "current_operation = "+arg(*update.CurrentOperation))
	}
	if update.ErrorMessage != nil {
		setClauses = append(setClauses, "error_message = "+arg(nullString(*update.ErrorMessage)))
	}
	if update.ProviderRequestID != nil {
		setClauses = append(setClauses, "provider_request_id = "+arg(nullString(*update.ProviderRequestID)))
	}

	where := "id = $1"
	if update.Status != nil {
		target := *update.Status
		if !domain.IsValidSessionStatus(target) {
			return fmt.Errorf("%w: unknown status %q", store.ErrInvalidTransition, target)
		}

		setClauses = append(setClauses, "status = "+arg(target))
		if target.IsTerminal() {
			setClauses = append(setClauses, "completed_at = "+arg(time.Now().UTC()))
		}

		preds := statusPredecessors(target)
		placeholders := make([]string, len(preds))
		for i, p := range preds {
			placeholders[i] = arg(p)
		}
		where += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}

	if len(setClauses) == 0 {
		return nil
	}

	query := "UPDATE generation_sessions SET " + strings.Join(setClauses, ", ") + " WHERE " + where

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update generation session",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}

	if rowsAffected == 0 {
		// Either the session is gone or the status guard blocked the edge.
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return store.ErrInvalidTransition
	}

	return nil
}

// ListByUser implements store.SessionStore.ListByUser.
func (s *SessionStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.GenerationSession, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + sessionColumns + `
		FROM generation_sessions
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]*domain.GenerationSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, MapError(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return sessions, nil
}

// PurgeStale implements store.SessionStore.PurgeStale. It deletes sessions
// still in non-terminal states older than maxAge; the orchestrator registry
// never sees these records, so the sweep is the backstop for process
// crashes mid-generation.
func (s *SessionStore) PurgeStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cutoff := time.Now().UTC().Add(-maxAge)
	query := `
		DELETE FROM generation_sessions
		WHERE status IN ($1, $2) AND started_at < $3
	`
	result, err := s.db.ExecContext(ctx, query,
		domain.SessionStatusPreparing, domain.SessionStatusGenerating, cutoff)
	if err != nil {
		log.Error("failed to purge stale sessions", slog.String("error", err.Error()))
		return 0, MapError(err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, MapError(err)
	}

	if purged > 0 {
		log.Info("purged stale generation sessions",
			slog.Int64("count", purged),
			slog.Time("cutoff", cutoff))
	}
	return purged, nil
}

// statusPredecessors returns the statuses from which the target status is
// reachable in one legal transition.
func statusPredecessors(target domain.SessionStatus) []domain.SessionStatus {
	all := []domain.SessionStatus{
		domain.SessionStatusPreparing,
		domain.SessionStatusGenerating,
		domain.SessionStatusCompleted,
		domain.SessionStatusFailed,
		domain.SessionStatusCancelled,
	}

	preds := make([]domain.SessionStatus, 0, 2)
	for _, from := range all {
		if from.CanTransitionTo(target) {
			preds = append(preds, from)
		}
	}
	return preds
}

// rowScanner lets scanSession work with both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.GenerationSession, error) {
	var session domain.GenerationSession
	var errorMessage, providerRequestID sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Title,
		&session.Description,
		&session.Category,
		&session.Status,
		&session.CardsGenerated,
		&session.TotalCards,
		&session.CurrentOperation,
		&errorMessage,
		&providerRequestID,
		&session.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	session.ErrorMessage = errorMessage.String
	session.ProviderRequestID = providerRequestID.String
	if completedAt.Valid {
		t := completedAt.Time
		session.CompletedAt = &t
	}

	return &session, nil
}

// nullString maps empty strings to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
