package orchestrator

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyGenerationID indicates a start request without a client
	// correlation id.
	ErrEmptyGenerationID = errors.New("generation id is required")

	// ErrDuplicateGeneration indicates the user already has an active
	// generation with the same id.
	ErrDuplicateGeneration = errors.New("generation with this id is already in progress")

	// ErrConcurrencyExceeded indicates the user is already running the
	// maximum number of concurrent generations.
	ErrConcurrencyExceeded = errors.New("too many concurrent generations")
)

// RateLimitedError indicates the user exhausted the fixed rate window.
// RetryAfter is how long until the window resets.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %s", e.RetryAfter.Round(time.Second))
}
