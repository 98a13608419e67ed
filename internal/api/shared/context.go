package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// ContextKey is the type for values this package stores on a request
// context.
type ContextKey string

const (
	// UserIDContextKey holds the authenticated user's id.
	UserIDContextKey ContextKey = "userID"

	// TraceIDKey holds the per-request trace id used to correlate logs and
	// error responses.
	TraceIDKey ContextKey = "traceID"
)

const traceIDBytes = 16

// SetTraceID attaches a fresh trace id to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, newTraceID())
}

// GetTraceID returns the context's trace id, or "" if none is set.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// SetUserID attaches the authenticated user's id to the context.
func SetUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDContextKey, userID)
}

// GetUserID returns the authenticated user's id from the context.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(uuid.UUID)
	return userID, ok
}

func newTraceID() string {
	b := make([]byte, traceIDBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is unrecoverable; fall back to a uuid rather
		// than a static value.
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}
