// Package limiter enforces per-user admission control for generation
// sessions: a fixed-window rate limit and a cap on simultaneous active
// generations. Both checks resolve atomically per user, serialized on a
// per-user lock rather than a global one.
package limiter

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cardforge/cardforge-api/internal/config"
)

// Outcome classifies an admission decision.
type Outcome int

// Possible admission outcomes
const (
	// Admitted means both checks passed and one concurrency slot was
	// reserved; the caller must call Release when the generation finishes.
	Admitted Outcome = iota
	// RateLimited means the user exhausted the request budget for the
	// current window.
	RateLimited
	// ConcurrencyExceeded means the user already has the maximum number of
	// active generations.
	ConcurrencyExceeded
)

// Decision is the result of one admission check.
type Decision struct {
	Outcome Outcome
	// RetryAfter is how long until the rate window resets. Only meaningful
	// when Outcome is RateLimited.
	RetryAfter time.Duration
}

// userState holds one user's counters. The embedded mutex serializes all
// admission decisions for that user.
type userState struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
	active      int
}

// Limiter implements per-user admission control. The zero value is not
// usable; construct with New.
type Limiter struct {
	window        time.Duration
	maxPerWindow  int
	maxConcurrent int
	timeFunc      func() time.Time // Injectable for testing

	mu    sync.Mutex // guards the users map only, never held during a decision
	users map[uuid.UUID]*userState
}

// New creates a Limiter from the configured limits.
func New(cfg config.LimitsConfig) *Limiter {
	return &Limiter{
		window:        cfg.RateWindow,
		maxPerWindow:  cfg.MaxRequestsPerWindow,
		maxConcurrent: cfg.MaxConcurrent,
		timeFunc:      time.Now,
		users:         make(map[uuid.UUID]*userState),
	}
}

// Admit checks the user's rate window and concurrency slots and, when both
// pass, counts the request and reserves a slot. The window resets lazily on
// the first check after expiry. No two concurrent admissions for the same
// user can both succeed when only one slot remains.
func (l *Limiter) Admit(userID uuid.UUID) Decision {
	state := l.stateFor(userID)

	state.mu.Lock()
	defer state.mu.Unlock()

	now := l.timeFunc()
	if state.windowStart.IsZero() || now.Sub(state.windowStart) >= l.window {
		state.windowStart = now
		state.count = 0
	}

	if state.count >= l.maxPerWindow {
		return Decision{
			Outcome:    RateLimited,
			RetryAfter: state.windowStart.Add(l.window).Sub(now),
		}
	}

	if state.active >= l.maxConcurrent {
		return Decision{Outcome: ConcurrencyExceeded}
	}

	state.count++
	state.active++
	return Decision{Outcome: Admitted}
}

// Release returns a previously reserved concurrency slot. Releasing with no
// slot held is a no-op; the active count never goes negative.
func (l *Limiter) Release(userID uuid.UUID) {
	state := l.stateFor(userID)

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.active > 0 {
		state.active--
	}
}

// ActiveCount reports the user's currently reserved concurrency slots.
func (l *Limiter) ActiveCount(userID uuid.UUID) int {
	state := l.stateFor(userID)

	state.mu.Lock()
	defer state.mu.Unlock()

	return state.active
}

func (l *Limiter) stateFor(userID uuid.UUID) *userState {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.users[userID]
	if !ok {
		state = &userState{}
		l.users[userID] = state
	}
	return state
}
