package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardforge/cardforge-api/internal/config"
	"github.com/cardforge/cardforge-api/internal/domain"
	"github.com/cardforge/cardforge-api/internal/generation"
	"github.com/cardforge/cardforge-api/internal/platform/logger"
)

// fakeCaller scripts provider responses per attempt.
type fakeCaller struct {
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	text  string
	usage *callUsage
	err   error
}

func (f *fakeCaller) generateContent(ctx context.Context, prompt string) (string, *callUsage, error) {
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	r := f.responses[idx]
	return r.text, r.usage, r.err
}

// fakeAuditStore captures audit entries and can be scripted to fail.
type fakeAuditStore struct {
	entries   []*domain.GenerationAudit
	createErr error
}

func (f *fakeAuditStore) Create(ctx context.Context, audit *domain.GenerationAudit) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.entries = append(f.entries, audit)
	return nil
}

func (f *fakeAuditStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.GenerationAudit, error) {
	return f.entries, nil
}

func newTestEngine(t *testing.T, caller modelCaller, audits *fakeAuditStore) *Engine {
	t.Helper()

	tmpl, err := parsePromptTemplate()
	require.NoError(t, err)

	log, _ := logger.NewTestLogger()

	return &Engine{
		logger: log,
		config: config.GenerationConfig{
			ModelName:         "gemini-test",
			MaxRetries:        2,
			RetryDelaySeconds: 1,
		},
		promptTemplate: tmpl,
		caller:         caller,
		auditStore:     audits,
		timeAfter: func(time.Duration) <-chan time.Time {
			ch := make(chan time.Time, 1)
			ch <- time.Now()
			return ch
		},
	}
}

func testRequest() generation.Request {
	return generation.Request{
		SessionID:   uuid.New(),
		UserID:      uuid.New(),
		Title:       "Spanish Verbs",
		Description: "Common irregular verbs",
		Category:    "languages",
	}
}

func cardsJSON(n int) string {
	out := `{"cards":[`
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"front":"question %d","back":"answer %d"}`, i+1, i+1)
	}
	return out + `]}`
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("returns validated cards and usage", func(t *testing.T) {
		audits := &fakeAuditStore{}
		engine := newTestEngine(t, &fakeCaller{responses: []fakeResponse{
			{text: cardsJSON(5), usage: &callUsage{inputTokens: 120, outputTokens: 430}},
		}}, audits)
		req := testRequest()

		result, err := engine.Generate(ctx, req)

		require.NoError(t, err)
		require.Len(t, result.Cards, 5)
		assert.Equal(t, "question 1", result.Cards[0].FrontText)
		assert.Equal(t, req.SessionID, result.Cards[0].SessionID)
		assert.NotEmpty(t, result.ProviderRequestID)
		assert.Equal(t, 120, result.InputTokens)
		assert.Equal(t, 430, result.OutputTokens)

		require.Len(t, audits.entries, 1)
		assert.Equal(t, domain.AuditStatusSuccess, audits.entries[0].Status)
		assert.Equal(t, 120, audits.entries[0].InputTokens)
	})

	t.Run("discards malformed cards but keeps the batch", func(t *testing.T) {
		body := `{"cards":[{"front":"q1","back":"a1"},{"front":"","back":""},{"front":"q3","back":"a3"}]}`
		engine := newTestEngine(t, &fakeCaller{responses: []fakeResponse{{text: body}}}, &fakeAuditStore{})

		result, err := engine.Generate(ctx, testRequest())

		require.NoError(t, err)
		require.Len(t, result.Cards, 2)
		assert.Equal(t, "q1", result.Cards[0].FrontText)
		assert.Equal(t, "q3", result.Cards[1].FrontText)
	})

	t.Run("keeps image-only cards", func(t *testing.T) {
		body := `{"cards":[{"front":"","back":"","front_image":"images/chart.png"}]}`
		engine := newTestEngine(t, &fakeCaller{responses: []fakeResponse{{text: body}}}, &fakeAuditStore{})

		result, err := engine.Generate(ctx, testRequest())

		require.NoError(t, err)
		require.Len(t, result.Cards, 1)
		assert.Equal(t, "images/chart.png", result.Cards[0].FrontImageRef)
	})

	t.Run("fails when every card is malformed", func(t *testing.T) {
		body := `{"cards":[{"front":"","back":""},{"front":"","back":""}]}`
		audits := &fakeAuditStore{}
		engine := newTestEngine(t, &fakeCaller{responses: []fakeResponse{{text: body}}}, audits)

		_, err := engine.Generate(ctx, testRequest())

		assert.ErrorIs(t, err, generation.ErrNoValidCards)
		require.Len(t, audits.entries, 1)
		assert.Equal(t, domain.AuditStatusFailure, audits.entries[0].Status)
		assert.NotEmpty(t, audits.entries[0].ErrorMessage)
	})

	t.Run("fails on empty card list", func(t *testing.T) {
		engine := newTestEngine(t, &fakeCaller{responses: []fakeResponse{{text: `{"cards":[]}`}}}, &fakeAuditStore{})

		_, err := engine.Generate(ctx, testRequest())

		assert.ErrorIs(t, err, generation.ErrNoValidCards)
	})

	t.Run("fails on unparseable response", func(t *testing.T) {
		engine := newTestEngine(t, &fakeCaller{responses: []fakeResponse{{text: `not json`}}}, &fakeAuditStore{})

		_, err := engine.Generate(ctx, testRequest())

		assert.ErrorIs(t, err, generation.ErrInvalidResponse)
	})

	t.Run("fails with empty title", func(t *testing.T) {
		engine := newTestEngine(t, &fakeCaller{responses: []fakeResponse{{text: cardsJSON(1)}}}, &fakeAuditStore{})
		req := testRequest()
		req.Title = ""

		_, err := engine.Generate(ctx, req)

		assert.ErrorIs(t, err, generation.ErrGenerationFailed)
	})

	t.Run("audit failure does not mask the result", func(t *testing.T) {
		audits := &fakeAuditStore{createErr: errors.New("audit db down")}
		engine := newTestEngine(t, &fakeCaller{responses: []fakeResponse{{text: cardsJSON(3)}}}, audits)

		result, err := engine.Generate(ctx, testRequest())

		require.NoError(t, err)
		assert.Len(t, result.Cards, 3)
	})
}

func TestCallWithRetry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("retries transient failures until success", func(t *testing.T) {
		caller := &fakeCaller{responses: []fakeResponse{
			{err: fmt.Errorf("%w: connection reset", generation.ErrTransientFailure)},
			{err: fmt.Errorf("%w: connection reset", generation.ErrTransientFailure)},
			{text: cardsJSON(2)},
		}}
		engine := newTestEngine(t, caller, &fakeAuditStore{})

		result, err := engine.Generate(ctx, testRequest())

		require.NoError(t, err)
		assert.Len(t, result.Cards, 2)
		assert.Equal(t, 3, caller.calls)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		caller := &fakeCaller{responses: []fakeResponse{
			{err: fmt.Errorf("%w: connection reset", generation.ErrTransientFailure)},
		}}
		engine := newTestEngine(t, caller, &fakeAuditStore{})

		_, err := engine.Generate(ctx, testRequest())

		assert.ErrorIs(t, err, generation.ErrTransientFailure)
		assert.Equal(t, 3, caller.calls, "initial attempt plus two retries")
	})

	t.Run("does not retry blocked content", func(t *testing.T) {
		caller := &fakeCaller{responses: []fakeResponse{
			{err: fmt.Errorf("%w: finish reason safety", generation.ErrContentBlocked)},
		}}
		engine := newTestEngine(t, caller, &fakeAuditStore{})

		_, err := engine.Generate(ctx, testRequest())

		assert.ErrorIs(t, err, generation.ErrContentBlocked)
		assert.Equal(t, 1, caller.calls)
	})

	t.Run("does not retry malformed responses", func(t *testing.T) {
		caller := &fakeCaller{responses: []fakeResponse{
			{err: fmt.Errorf("%w: empty content", generation.ErrInvalidResponse)},
		}}
		engine := newTestEngine(t, caller, &fakeAuditStore{})

		_, err := engine.Generate(ctx, testRequest())

		assert.ErrorIs(t, err, generation.ErrInvalidResponse)
		assert.Equal(t, 1, caller.calls)
	})
}

func TestRenderPrompt(t *testing.T) {
	t.Parallel()

	tmpl, err := parsePromptTemplate()
	require.NoError(t, err)

	t.Run("includes deck fields", func(t *testing.T) {
		prompt, err := renderPrompt(tmpl, "Spanish Verbs", "Irregulars", "languages")

		require.NoError(t, err)
		assert.Contains(t, prompt, "Spanish Verbs")
		assert.Contains(t, prompt, "Irregulars")
		assert.Contains(t, prompt, "languages")
	})

	t.Run("omits empty optional fields", func(t *testing.T) {
		prompt, err := renderPrompt(tmpl, "Spanish Verbs", "", "")

		require.NoError(t, err)
		assert.NotContains(t, prompt, "Deck description:")
		assert.NotContains(t, prompt, "Category:")
	})

	t.Run("rejects empty title", func(t *testing.T) {
		_, err := renderPrompt(tmpl, "", "desc", "cat")

		assert.ErrorIs(t, err, ErrEmptyTitle)
	})
}
