package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardforge/cardforge-api/internal/domain"
	"github.com/cardforge/cardforge-api/internal/store"
)

// stubDB is a DBTX that fails every call; used to exercise paths that must
// not reach the database.
type stubDB struct{}

func (stubDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, errors.New("unexpected database access")
}

func (stubDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, errors.New("unexpected database access")
}

func (stubDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return &sql.Row{}
}

func TestCreateValidatesBeforeWriting(t *testing.T) {
	t.Parallel()

	s := NewSessionStore(stubDB{}, nil)
	session := &domain.GenerationSession{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Title:  "", // invalid
		Status: domain.SessionStatusPreparing,
	}

	err := s.Create(context.Background(), session)

	assert.ErrorIs(t, err, domain.ErrEmptySessionTitle,
		"validation must fail before any database write")
}

func TestUpdateProgressRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	s := NewSessionStore(stubDB{}, nil)
	bogus := domain.SessionStatus("archived")

	err := s.UpdateProgress(context.Background(), uuid.New(), store.SessionUpdate{Status: &bogus})

	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestUpdateProgressEmptyUpdateIsNoOp(t *testing.T) {
	t.Parallel()

	s := NewSessionStore(stubDB{}, nil)

	err := s.UpdateProgress(context.Background(), uuid.New(), store.SessionUpdate{})

	require.NoError(t, err)
}

func TestStatusPredecessors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		target domain.SessionStatus
		want   []domain.SessionStatus
	}{
		{domain.SessionStatusGenerating, []domain.SessionStatus{domain.SessionStatusPreparing}},
		{domain.SessionStatusCompleted, []domain.SessionStatus{domain.SessionStatusGenerating}},
		{domain.SessionStatusFailed, []domain.SessionStatus{domain.SessionStatusPreparing, domain.SessionStatusGenerating}},
		{domain.SessionStatusCancelled, []domain.SessionStatus{domain.SessionStatusPreparing, domain.SessionStatusGenerating}},
		{domain.SessionStatusPreparing, []domain.SessionStatus{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.target), func(t *testing.T) {
			assert.Equal(t, tt.want, statusPredecessors(tt.target))
		})
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, MapError(nil))
	})

	t.Run("no rows maps to not found", func(t *testing.T) {
		assert.ErrorIs(t, MapError(sql.ErrNoRows), store.ErrNotFound)
	})

	t.Run("unique violation maps to duplicate", func(t *testing.T) {
		err := &pgconn.PgError{Code: uniqueViolationCode}
		assert.ErrorIs(t, MapError(err), store.ErrDuplicate)
		assert.True(t, IsUniqueViolation(err))
	})

	t.Run("foreign key violation maps to invalid entity", func(t *testing.T) {
		err := &pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "fk_user"}
		assert.ErrorIs(t, MapError(err), store.ErrInvalidEntity)
	})

	t.Run("unknown errors pass through", func(t *testing.T) {
		cause := errors.New("connection refused")
		assert.Equal(t, cause, MapError(cause))
	})
}

func TestNullString(t *testing.T) {
	t.Parallel()

	assert.False(t, nullString("").Valid)
	assert.True(t, nullString("x").Valid)
}
