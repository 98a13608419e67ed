package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardforge/cardforge-api/internal/config"
	"github.com/cardforge/cardforge-api/internal/domain"
	"github.com/cardforge/cardforge-api/internal/platform/logger"
	"github.com/cardforge/cardforge-api/internal/store"
)

// purgeRecorder implements store.SessionStore; only PurgeStale matters here.
type purgeRecorder struct {
	mu      sync.Mutex
	calls   int
	maxAges []time.Duration
	purged  int64
	err     error
}

func (p *purgeRecorder) PurgeStale(_ context.Context, maxAge time.Duration) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.maxAges = append(p.maxAges, maxAge)
	return p.purged, p.err
}

func (p *purgeRecorder) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *purgeRecorder) Create(context.Context, *domain.GenerationSession) error {
	return errors.New("not implemented")
}

func (p *purgeRecorder) GetByID(context.Context, uuid.UUID) (*domain.GenerationSession, error) {
	return nil, store.ErrSessionNotFound
}

func (p *purgeRecorder) UpdateProgress(context.Context, uuid.UUID, store.SessionUpdate) error {
	return errors.New("not implemented")
}

func (p *purgeRecorder) ListByUser(context.Context, uuid.UUID, int) ([]*domain.GenerationSession, error) {
	return nil, nil
}

func TestSweeper_SweepsImmediatelyAndOnInterval(t *testing.T) {
	t.Parallel()

	log, _ := logger.NewTestLogger()
	recorder := &purgeRecorder{purged: 2}
	s := New(log, recorder, config.SweeperConfig{
		Interval: 20 * time.Millisecond,
		MaxAge:   time.Hour,
	})

	s.Start()
	defer s.Stop()

	// One sweep fires on start, more follow on the ticker.
	require.Eventually(t, func() bool { return recorder.callCount() >= 3 }, 2*time.Second, 5*time.Millisecond)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	for _, maxAge := range recorder.maxAges {
		assert.Equal(t, time.Hour, maxAge)
	}
}

func TestSweeper_StopHaltsLoop(t *testing.T) {
	t.Parallel()

	log, _ := logger.NewTestLogger()
	recorder := &purgeRecorder{}
	s := New(log, recorder, config.SweeperConfig{
		Interval: 10 * time.Millisecond,
		MaxAge:   time.Hour,
	})

	s.Start()
	require.Eventually(t, func() bool { return recorder.callCount() >= 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	settled := recorder.callCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, recorder.callCount())
}

func TestSweeper_KeepsRunningAfterError(t *testing.T) {
	t.Parallel()

	log, buf := logger.NewTestLogger()
	recorder := &purgeRecorder{err: errors.New("connection refused")}
	s := New(log, recorder, config.SweeperConfig{
		Interval: 10 * time.Millisecond,
		MaxAge:   time.Hour,
	})

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return recorder.callCount() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, buf.String(), "stale session sweep failed")
}
