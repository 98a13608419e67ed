package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// genKey identifies one active generation. Generation ids are client-chosen,
// so they are only unique per user.
type genKey struct {
	userID       uuid.UUID
	generationID string
}

// activeGeneration is the in-memory record of a running generation. Removal
// from the registry is the single point of finalization: whichever path
// removes the entry first owns the terminal transition.
type activeGeneration struct {
	key       genKey
	sessionID uuid.UUID
	startedAt time.Time
	cancel    context.CancelFunc

	mu    sync.Mutex
	timer *time.Timer
}

func (g *activeGeneration) setTimer(t *time.Timer) {
	g.mu.Lock()
	g.timer = t
	g.mu.Unlock()
}

func (g *activeGeneration) stopTimer() {
	g.mu.Lock()
	if g.timer != nil {
		g.timer.Stop()
	}
	g.mu.Unlock()
}

// registry tracks active generations under a single mutex.
type registry struct {
	mu     sync.Mutex
	active map[genKey]*activeGeneration
}

func newRegistry() *registry {
	return &registry{active: make(map[genKey]*activeGeneration)}
}

// add registers the generation, rejecting duplicates.
func (r *registry) add(g *activeGeneration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.active[g.key]; exists {
		return ErrDuplicateGeneration
	}
	r.active[g.key] = g
	return nil
}

// remove deletes the entry and reports whether it was still present. Exactly
// one caller observes true for any given generation.
func (r *registry) remove(key genKey) (*activeGeneration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.active[key]
	if ok {
		delete(r.active, key)
	}
	return g, ok
}

// contains reports whether the generation is still active.
func (r *registry) contains(key genKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[key]
	return ok
}

// removeAllForUser atomically claims every active generation owned by the
// user.
func (r *registry) removeAllForUser(userID uuid.UUID) []*activeGeneration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var claimed []*activeGeneration
	for key, g := range r.active {
		if key.userID == userID {
			claimed = append(claimed, g)
			delete(r.active, key)
		}
	}
	return claimed
}

// removeAll atomically claims every active generation.
func (r *registry) removeAll() []*activeGeneration {
	r.mu.Lock()
	defer r.mu.Unlock()
	claimed := make([]*activeGeneration, 0, len(r.active))
	for key, g := range r.active {
		claimed = append(claimed, g)
		delete(r.active, key)
	}
	return claimed
}

// count returns the number of active generations across all users.
func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
