package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cardforge/cardforge-api/internal/domain"
	"github.com/cardforge/cardforge-api/internal/store"
)

// MockSessionStore implements store.SessionStore for testing.
type MockSessionStore struct {
	CreateFn         func(ctx context.Context, session *domain.GenerationSession) error
	GetByIDFn        func(ctx context.Context, id uuid.UUID) (*domain.GenerationSession, error)
	UpdateProgressFn func(ctx context.Context, id uuid.UUID, update store.SessionUpdate) error
	ListByUserFn     func(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.GenerationSession, error)
	PurgeStaleFn     func(ctx context.Context, maxAge time.Duration) (int64, error)

	// Err is returned by any method without a custom function.
	Err error

	mu    sync.Mutex
	calls map[string]int
}

var _ store.SessionStore = (*MockSessionStore)(nil)

func (m *MockSessionStore) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

// Calls returns how many times the named method was invoked.
func (m *MockSessionStore) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockSessionStore) Create(ctx context.Context, session *domain.GenerationSession) error {
	m.record("Create")
	if m.CreateFn != nil {
		return m.CreateFn(ctx, session)
	}
	return m.Err
}

func (m *MockSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationSession, error) {
	m.record("GetByID")
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, m.Err
}

func (m *MockSessionStore) UpdateProgress(ctx context.Context, id uuid.UUID, update store.SessionUpdate) error {
	m.record("UpdateProgress")
	if m.UpdateProgressFn != nil {
		return m.UpdateProgressFn(ctx, id, update)
	}
	return m.Err
}

func (m *MockSessionStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.GenerationSession, error) {
	m.record("ListByUser")
	if m.ListByUserFn != nil {
		return m.ListByUserFn(ctx, userID, limit)
	}
	return nil, m.Err
}

func (m *MockSessionStore) PurgeStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	m.record("PurgeStale")
	if m.PurgeStaleFn != nil {
		return m.PurgeStaleFn(ctx, maxAge)
	}
	return 0, m.Err
}
