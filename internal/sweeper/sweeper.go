// Package sweeper periodically deletes stale generation sessions: records
// left in a non-terminal state by a crashed process, which no running
// orchestrator will ever finalize.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cardforge/cardforge-api/internal/config"
	"github.com/cardforge/cardforge-api/internal/store"
)

// Sweeper runs the stale-session purge on a fixed interval.
type Sweeper struct {
	logger   *slog.Logger
	sessions store.SessionStore
	interval time.Duration
	maxAge   time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Sweeper from the configured interval and stale age.
func New(logger *slog.Logger, sessions store.SessionStore, cfg config.SweeperConfig) *Sweeper {
	return &Sweeper{
		logger:   logger.With(slog.String("component", "sweeper")),
		sessions: sessions,
		interval: cfg.Interval,
		maxAge:   cfg.MaxAge,
	}
}

// Start launches the sweep loop. One sweep runs immediately so a restart
// after a crash cleans up without waiting a full interval.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop halts the loop and waits for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	purged, err := s.sessions.PurgeStale(ctx, s.maxAge)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("stale session sweep failed", slog.String("error", err.Error()))
		return
	}
	if purged > 0 {
		s.logger.Info("purged stale sessions", slog.Int64("count", purged))
	}
}
