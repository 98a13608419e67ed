package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditStatus marks the outcome of a provider call.
type AuditStatus string

// Possible audit status values
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// GenerationAudit records a single call to the content provider, success or
// failure, for observability and cost accounting. One row is written per
// call; a failed write never masks the generation result itself.
type GenerationAudit struct {
	ID           uuid.UUID   `json:"id"`
	UserID       uuid.UUID   `json:"user_id"`
	SessionID    *uuid.UUID  `json:"session_id,omitempty"`
	Prompt       string      `json:"prompt"`
	ModelName    string      `json:"model_name"`
	Status       AuditStatus `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
	DurationMs   int64       `json:"duration_ms"`
	InputTokens  int         `json:"input_tokens"`
	OutputTokens int         `json:"output_tokens"`
	CreatedAt    time.Time   `json:"created_at"`
}

// NewGenerationAudit creates an audit entry for one provider call.
func NewGenerationAudit(userID uuid.UUID, sessionID *uuid.UUID, prompt, modelName string) *GenerationAudit {
	return &GenerationAudit{
		ID:        uuid.New(),
		UserID:    userID,
		SessionID: sessionID,
		Prompt:    prompt,
		ModelName: modelName,
		Status:    AuditStatusFailure,
		CreatedAt: time.Now().UTC(),
	}
}

// MarkSuccess records a successful call with its duration.
func (a *GenerationAudit) MarkSuccess(duration time.Duration) {
	a.Status = AuditStatusSuccess
	a.DurationMs = duration.Milliseconds()
}

// MarkFailure records a failed call with its duration and failure reason.
func (a *GenerationAudit) MarkFailure(duration time.Duration, err error) {
	a.Status = AuditStatusFailure
	a.DurationMs = duration.Milliseconds()
	if err != nil {
		a.ErrorMessage = err.Error()
	}
}
