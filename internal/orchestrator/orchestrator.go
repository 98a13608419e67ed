// Package orchestrator drives the full lifecycle of a card generation
// session: admission, persistence, provider invocation, ordered event
// streaming, and finalization. It is the only component that moves a
// session between states, and it guarantees exactly one terminal
// transition per session no matter how many paths (provider failure,
// delivery failure, disconnect, timeout, shutdown) race to end it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cardforge/cardforge-api/internal/domain"
	"github.com/cardforge/cardforge-api/internal/events"
	"github.com/cardforge/cardforge-api/internal/gateway"
	"github.com/cardforge/cardforge-api/internal/generation"
	"github.com/cardforge/cardforge-api/internal/limiter"
	"github.com/cardforge/cardforge-api/internal/store"
)

// Stage labels persisted on the session record as the generation advances.
const (
	opContactingProvider = "Contacting content provider"
	opGeneratingCards    = "Generating cards"
	opCompleted          = "Completed"
	opFailed             = "Failed"
	opCancelled          = "Cancelled"
)

// finalizeTimeout bounds the persistence writes done while ending a session,
// which run on a detached context because the generation's own context is
// already cancelled by then.
const finalizeTimeout = 10 * time.Second

// EventSender delivers one event to a user's realtime connection, blocking
// until the client acknowledges it. The gateway implements this.
type EventSender interface {
	Send(ctx context.Context, userID uuid.UUID, event string, payload any) error
}

// Orchestrator coordinates generation sessions end to end.
type Orchestrator struct {
	logger   *slog.Logger
	sessions store.SessionStore
	engine   generation.Engine
	limiter  *limiter.Limiter
	sender   EventSender
	registry *registry

	sessionTimeout time.Duration

	// afterFunc schedules the session timeout; injectable for tests.
	afterFunc func(d time.Duration, f func()) *time.Timer

	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup
}

var _ gateway.RequestHandler = (*Orchestrator)(nil)

// New creates an Orchestrator. sessionTimeout bounds how long a generation
// may run before it is forcibly failed.
func New(logger *slog.Logger, sessions store.SessionStore, engine generation.Engine, lim *limiter.Limiter, sender EventSender, sessionTimeout time.Duration) *Orchestrator {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		logger:         logger.With(slog.String("component", "orchestrator")),
		sessions:       sessions,
		engine:         engine,
		limiter:        lim,
		sender:         sender,
		registry:       newRegistry(),
		sessionTimeout: sessionTimeout,
		afterFunc:      time.AfterFunc,
		baseCtx:        baseCtx,
		cancelBase:     cancel,
	}
}

// HandleStartGeneration validates and admits a generation request, persists
// the session record, and launches the generation asynchronously. It returns
// quickly; all streaming happens on a background goroutine. A non-nil error
// means the request was rejected and nothing was started.
func (o *Orchestrator) HandleStartGeneration(ctx context.Context, userID uuid.UUID, generationID string, req events.StartGenerationPayload) error {
	if strings.TrimSpace(generationID) == "" {
		return ErrEmptyGenerationID
	}

	session, err := domain.NewGenerationSession(userID, req.Title, req.Description, req.Category)
	if err != nil {
		return fmt.Errorf("invalid generation request: %w", err)
	}

	// Admission reserves a concurrency slot; every failure path below must
	// release it.
	decision := o.limiter.Admit(userID)
	switch decision.Outcome {
	case limiter.RateLimited:
		return &RateLimitedError{RetryAfter: decision.RetryAfter}
	case limiter.ConcurrencyExceeded:
		return ErrConcurrencyExceeded
	}

	key := genKey{userID: userID, generationID: generationID}
	genCtx, cancel := context.WithCancel(o.baseCtx)
	gen := &activeGeneration{
		key:       key,
		sessionID: session.ID,
		startedAt: session.StartedAt,
		cancel:    cancel,
	}

	if err := o.registry.add(gen); err != nil {
		cancel()
		o.limiter.Release(userID)
		return err
	}

	if err := o.sessions.Create(ctx, session); err != nil {
		o.registry.remove(key)
		cancel()
		o.limiter.Release(userID)
		return fmt.Errorf("failed to save generation session: %w", err)
	}

	gen.setTimer(o.afterFunc(o.sessionTimeout, func() {
		o.finalize(key, domain.SessionStatusFailed,
			fmt.Sprintf("generation timed out after %s", o.sessionTimeout))
	}))

	o.logger.Info("generation admitted",
		slog.String("generation_id", generationID),
		slog.String("session_id", session.ID.String()),
		slog.String("user_id", userID.String()))

	o.wg.Add(1)
	go o.run(genCtx, gen, generation.Request{
		SessionID:   session.ID,
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
	})

	return nil
}

// HandleDisconnect cancels every active generation owned by the user. Fired
// by the gateway when a connection is lost; supersession by a newer
// connection does not reach here.
func (o *Orchestrator) HandleDisconnect(userID uuid.UUID, reason string) {
	claimed := o.registry.removeAllForUser(userID)
	for _, gen := range claimed {
		o.finalizeEntry(gen, domain.SessionStatusCancelled, reason, false)
	}
	if len(claimed) > 0 {
		o.logger.Info("cancelled generations after disconnect",
			slog.String("user_id", userID.String()),
			slog.Int("count", len(claimed)))
	}
}

// ActiveCount returns the number of generations currently running across
// all users.
func (o *Orchestrator) ActiveCount() int {
	return o.registry.count()
}

// Shutdown fails all active generations and waits for their goroutines to
// drain, bounded by ctx.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancelBase()
	for _, gen := range o.registry.removeAll() {
		o.finalizeEntry(gen, domain.SessionStatusFailed, "server shutting down", false)
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes one generation on its own goroutine: provider call, then the
// ordered stream of progress and card events.
func (o *Orchestrator) run(ctx context.Context, gen *activeGeneration, req generation.Request) {
	defer o.wg.Done()

	log := o.logger.With(
		slog.String("generation_id", gen.key.generationID),
		slog.String("session_id", gen.sessionID.String()),
		slog.String("user_id", gen.key.userID.String()))

	if err := o.updateSession(ctx, gen.sessionID, store.SessionUpdate{
		Status:           statusPtr(domain.SessionStatusGenerating),
		CurrentOperation: strPtr(opContactingProvider),
	}); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			// Another path already finalized the session.
			return
		}
		log.Warn("failed to record generating status", slog.String("error", err.Error()))
	}

	result, err := o.engine.Generate(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			// The generation was finalized while the provider call was in
			// flight; the terminal state is already settled.
			log.Debug("provider call aborted after finalization")
			return
		}
		log.Warn("provider call failed", slog.String("error", err.Error()))
		o.finalize(gen.key, domain.SessionStatusFailed, failureMessage(err))
		return
	}

	if !o.registry.contains(gen.key) {
		log.Info("discarding provider result, session already finalized")
		return
	}

	o.stream(ctx, gen, result, log)
}

// stream delivers the generated cards in provider order. Each card is
// persisted before its events are emitted, so a crash mid-stream never
// reports a card the record does not reflect. Any delivery failure ends the
// session.
func (o *Orchestrator) stream(ctx context.Context, gen *activeGeneration, result *generation.Result, log *slog.Logger) {
	total := len(result.Cards)
	generationID := gen.key.generationID

	update := store.SessionUpdate{
		TotalCards:       &total,
		CurrentOperation: strPtr(opGeneratingCards),
	}
	if result.ProviderRequestID != "" {
		update.ProviderRequestID = &result.ProviderRequestID
	}
	if err := o.updateSession(ctx, gen.sessionID, update); err != nil {
		log.Warn("failed to record provider result", slog.String("error", err.Error()))
	}

	if err := o.send(ctx, gen, events.EventGenerationProgress, events.ProgressPayload{
		GenerationID: generationID,
		Message:      "Starting card generation",
		Progress:     0,
		TotalCards:   total,
	}); err != nil {
		o.finalizeDelivery(gen.key, err)
		return
	}

	for i, card := range result.Cards {
		if !o.registry.contains(gen.key) {
			log.Info("stopping stream, session already finalized",
				slog.Int("cards_delivered", i))
			return
		}

		n := i + 1
		percent := n * 100 / total
		if err := o.updateSession(ctx, gen.sessionID, store.SessionUpdate{
			CardsGenerated: &n,
		}); err != nil {
			log.Warn("failed to record card progress",
				slog.Int("card", n),
				slog.String("error", err.Error()))
		}

		if err := o.send(ctx, gen, events.EventGenerationProgress, events.ProgressPayload{
			GenerationID: generationID,
			Message:      fmt.Sprintf("Generated card %d of %d", n, total),
			Progress:     percent,
			TotalCards:   total,
			CurrentCard:  n,
		}); err != nil {
			o.finalizeDelivery(gen.key, err)
			return
		}
		if err := o.send(ctx, gen, events.EventCardGenerated, events.CardPayload{
			GenerationID: generationID,
			Card:         card,
			Progress:     percent,
			TotalCards:   total,
			CurrentCard:  n,
		}); err != nil {
			o.finalizeDelivery(gen.key, err)
			return
		}
	}

	if err := o.send(ctx, gen, events.EventGenerationProgress, events.ProgressPayload{
		GenerationID: generationID,
		Message:      "All cards generated",
		Progress:     100,
		TotalCards:   total,
		CurrentCard:  total,
	}); err != nil {
		o.finalizeDelivery(gen.key, err)
		return
	}

	o.complete(gen, total, log)
}

// complete settles a fully streamed session. The registry removal decides
// the race against any concurrent finalizer.
func (o *Orchestrator) complete(gen *activeGeneration, total int, log *slog.Logger) {
	entry, ok := o.registry.remove(gen.key)
	if !ok {
		return
	}
	entry.stopTimer()
	o.limiter.Release(gen.key.userID)

	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	update := store.SessionUpdate{
		Status:           statusPtr(domain.SessionStatusCompleted),
		CardsGenerated:   &total,
		CurrentOperation: strPtr(opCompleted),
	}
	err := o.updateSession(ctx, gen.sessionID, update)
	if errors.Is(err, store.ErrInvalidTransition) {
		// The earlier generating write failed transiently and the record is
		// still in preparing; repair the missed step and retry once so the
		// session the client watched complete terminates cleanly.
		if repairErr := o.updateSession(ctx, gen.sessionID, store.SessionUpdate{
			Status: statusPtr(domain.SessionStatusGenerating),
		}); repairErr == nil {
			err = o.updateSession(ctx, gen.sessionID, update)
		}
	}
	if err != nil {
		log.Error("failed to record completion", slog.String("error", err.Error()))
	}

	if err := o.sender.Send(ctx, gen.key.userID, events.EventGenerationComplete, events.CompletePayload{
		GenerationID: gen.key.generationID,
		TotalCards:   total,
		Stage:        "complete",
	}); err != nil {
		log.Debug("failed to deliver completion event", slog.String("error", err.Error()))
	}

	entry.cancel()
	log.Info("generation completed", slog.Int("total_cards", total))
}

// finalize ends a session with the given terminal status. Idempotent: only
// the caller that removes the registry entry acts, every later call is a
// no-op.
func (o *Orchestrator) finalize(key genKey, status domain.SessionStatus, message string) {
	entry, ok := o.registry.remove(key)
	if !ok {
		return
	}
	o.finalizeEntry(entry, status, message, true)
}

// finalizeDelivery ends a session after an event delivery failure. A lost
// connection cancels the session; a client that stopped acknowledging fails
// it.
func (o *Orchestrator) finalizeDelivery(key genKey, err error) {
	if errors.Is(err, gateway.ErrNoConnection) || errors.Is(err, gateway.ErrConnectionClosed) {
		o.finalize(key, domain.SessionStatusCancelled, "connection lost")
		return
	}
	o.finalize(key, domain.SessionStatusFailed,
		fmt.Sprintf("event delivery failed: %s", err))
}

// finalizeEntry settles an already-claimed registry entry: stops the timer,
// cancels the generation context, persists the terminal status, releases the
// concurrency slot, and (when notify is set) tells the client.
func (o *Orchestrator) finalizeEntry(entry *activeGeneration, status domain.SessionStatus, message string, notify bool) {
	entry.stopTimer()
	entry.cancel()
	o.limiter.Release(entry.key.userID)

	operation := opFailed
	if status == domain.SessionStatusCancelled {
		operation = opCancelled
	}

	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	if err := o.updateSession(ctx, entry.sessionID, store.SessionUpdate{
		Status:           &status,
		ErrorMessage:     &message,
		CurrentOperation: &operation,
	}); err != nil && !errors.Is(err, store.ErrInvalidTransition) {
		o.logger.Error("failed to record terminal status",
			slog.String("session_id", entry.sessionID.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
	}

	if notify {
		if err := o.sender.Send(ctx, entry.key.userID, events.EventGenerationError, events.ErrorPayload{
			GenerationID: entry.key.generationID,
			Error:        message,
		}); err != nil {
			o.logger.Debug("failed to deliver error event",
				slog.String("generation_id", entry.key.generationID),
				slog.String("error", err.Error()))
		}
	}

	o.logger.Info("generation finalized",
		slog.String("generation_id", entry.key.generationID),
		slog.String("session_id", entry.sessionID.String()),
		slog.String("status", string(status)),
		slog.String("reason", message))
}

// send delivers one event for an active generation. Sends are sequential
// per generation, which preserves the per-connection event order. A closed
// connection gets one retry: when a newer connection superseded the old one
// mid-delivery, the retry resolves to the replacement; only a user with no
// connection at all surfaces a failure.
func (o *Orchestrator) send(ctx context.Context, gen *activeGeneration, event string, payload any) error {
	err := o.sender.Send(ctx, gen.key.userID, event, payload)
	if errors.Is(err, gateway.ErrConnectionClosed) {
		return o.sender.Send(ctx, gen.key.userID, event, payload)
	}
	return err
}

func (o *Orchestrator) updateSession(ctx context.Context, sessionID uuid.UUID, update store.SessionUpdate) error {
	return o.sessions.UpdateProgress(ctx, sessionID, update)
}

// failureMessage maps provider errors to the message stored on the session
// and reported to the client.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, generation.ErrContentBlocked):
		return "the content provider declined this request"
	case errors.Is(err, generation.ErrNoValidCards):
		return "the provider returned no usable cards"
	case errors.Is(err, generation.ErrInvalidResponse):
		return "the provider returned an unreadable response"
	default:
		return fmt.Sprintf("card generation failed: %s", err)
	}
}

func statusPtr(s domain.SessionStatus) *domain.SessionStatus { return &s }

func strPtr(s string) *string { return &s }
