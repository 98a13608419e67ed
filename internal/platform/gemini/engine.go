package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"text/template"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/cardforge/cardforge-api/internal/config"
	"github.com/cardforge/cardforge-api/internal/domain"
	"github.com/cardforge/cardforge-api/internal/generation"
	"github.com/cardforge/cardforge-api/internal/store"
)

// callUsage carries provider token accounting for one call.
type callUsage struct {
	inputTokens  int
	outputTokens int
}

// modelCaller abstracts the single provider call so tests can substitute a
// fake without a network client.
type modelCaller interface {
	// generateContent sends the prompt and returns the raw response text.
	generateContent(ctx context.Context, prompt string) (string, *callUsage, error)
}

// Engine implements the generation.Engine interface using Google's Gemini
// API to generate flashcards from a deck description.
type Engine struct {
	logger         *slog.Logger
	config         config.GenerationConfig
	promptTemplate *template.Template
	caller         modelCaller
	auditStore     store.AuditStore
	timeAfter      func(time.Duration) <-chan time.Time // Injectable for testing
}

// Ensure Engine implements the generation.Engine interface
var _ generation.Engine = (*Engine)(nil)

// NewEngine creates a Gemini-backed generation engine.
//
// The audit store may be nil, in which case calls are not audited; every
// other dependency is required.
func NewEngine(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.GenerationConfig,
	auditStore store.AuditStore,
) (*Engine, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	promptTemplate, err := parsePromptTemplate()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", generation.ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return &Engine{
		logger:         logger.With(slog.String("component", "gemini_engine")),
		config:         cfg,
		promptTemplate: promptTemplate,
		caller:         &genaiCaller{client: client, model: cfg.ModelName},
		auditStore:     auditStore,
		timeAfter:      time.After,
	}, nil
}

// Generate implements generation.Engine.Generate. It renders the prompt,
// calls the provider with retry, validates the response card by card, and
// records an audit entry for the call whether it succeeded or failed.
func (e *Engine) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	prompt, err := renderPrompt(e.promptTemplate, req.Title, req.Description, req.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	sessionID := req.SessionID
	audit := domain.NewGenerationAudit(req.UserID, &sessionID, prompt, e.config.ModelName)

	start := time.Now()
	text, usage, err := e.callWithRetry(ctx, prompt)
	duration := time.Since(start)

	if err != nil {
		audit.MarkFailure(duration, err)
		e.recordAudit(ctx, audit)
		return nil, err
	}

	cards, err := e.parseResponse(ctx, text, req.SessionID)
	if err != nil {
		audit.MarkFailure(duration, err)
		e.recordAudit(ctx, audit)
		return nil, err
	}

	audit.MarkSuccess(duration)
	result := &generation.Result{
		Cards:             cards,
		ProviderRequestID: uuid.New().String(),
		Duration:          duration,
	}
	if usage != nil {
		audit.InputTokens = usage.inputTokens
		audit.OutputTokens = usage.outputTokens
		result.InputTokens = usage.inputTokens
		result.OutputTokens = usage.outputTokens
	}
	e.recordAudit(ctx, audit)

	e.logger.InfoContext(ctx, "generation call succeeded",
		slog.String("session_id", req.SessionID.String()),
		slog.Int("card_count", len(cards)),
		slog.Int64("duration_ms", duration.Milliseconds()))

	return result, nil
}

// recordAudit persists the audit entry. Audit failures are logged and
// swallowed so they never mask the generation result.
func (e *Engine) recordAudit(ctx context.Context, audit *domain.GenerationAudit) {
	if e.auditStore == nil {
		return
	}

	if err := e.auditStore.Create(ctx, audit); err != nil {
		e.logger.ErrorContext(ctx, "failed to record generation audit",
			slog.String("error", err.Error()),
			slog.String("audit_id", audit.ID.String()),
			slog.String("user_id", audit.UserID.String()))
	}
}

// callWithRetry calls the provider with exponential backoff and jitter.
// Permanent errors (blocked content, malformed response) return immediately;
// transient failures retry up to the configured attempt budget.
func (e *Engine) callWithRetry(ctx context.Context, prompt string) (string, *callUsage, error) {
	maxRetries := e.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelaySeconds := e.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 1
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		text, usage, err := e.caller.generateContent(ctx, prompt)
		if err == nil {
			return text, usage, nil
		}
		lastErr = err

		if errors.Is(err, generation.ErrContentBlocked) || errors.Is(err, generation.ErrInvalidResponse) {
			return "", nil, err
		}

		if attempt == maxRetries {
			break
		}

		// delay = baseDelay * 2^attempt * jitter in [0.5, 1.0)
		backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoffSeconds * (0.5 + rng.Float64()*0.5) * float64(time.Second))

		e.logger.WarnContext(ctx, "provider call failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", maxRetries+1),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		select {
		case <-e.timeAfter(delay):
		case <-ctx.Done():
			return "", nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}

	return "", nil, fmt.Errorf("%w: exceeded %d attempts: %v",
		generation.ErrTransientFailure, maxRetries+1, lastErr)
}

// parseResponse decodes the provider's JSON and validates each card,
// discarding malformed entries rather than failing the batch. The call
// fails only when no valid card remains.
func (e *Engine) parseResponse(ctx context.Context, text string, sessionID uuid.UUID) ([]*domain.Card, error) {
	var parsed responseSchema
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}

	if len(parsed.Cards) == 0 {
		return nil, fmt.Errorf("%w: response contained no cards", generation.ErrNoValidCards)
	}

	cards := make([]*domain.Card, 0, len(parsed.Cards))
	discarded := 0
	for i, raw := range parsed.Cards {
		card, err := domain.NewCard(sessionID, raw.Front, raw.Back, raw.FrontImage, raw.BackImage)
		if err != nil {
			discarded++
			e.logger.WarnContext(ctx, "discarding malformed card from provider response",
				slog.Int("index", i),
				slog.String("error", err.Error()))
			continue
		}
		card.Hint = raw.Hint
		card.Tags = raw.Tags
		cards = append(cards, card)
	}

	if len(cards) == 0 {
		return nil, fmt.Errorf("%w: all %d cards were malformed", generation.ErrNoValidCards, discarded)
	}

	if discarded > 0 {
		e.logger.InfoContext(ctx, "discarded malformed cards from batch",
			slog.Int("discarded", discarded),
			slog.Int("kept", len(cards)))
	}

	return cards, nil
}

// genaiCaller is the production modelCaller backed by the genai client.
type genaiCaller struct {
	client *genai.Client
	model  string
}

func (c *genaiCaller) generateContent(ctx context.Context, prompt string) (string, *callUsage, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		// Assume transport-level failures are transient; the retry loop
		// classifies further.
		return "", nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", nil, fmt.Errorf("%w: finish reason safety", generation.ErrContentBlocked)
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	text := ""
	for _, part := range candidate.Content.Parts {
		text += part.Text
	}

	var usage *callUsage
	if resp.UsageMetadata != nil {
		usage = &callUsage{
			inputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			outputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	return text, usage, nil
}
