package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when card generation fails for any
	// general reason
	ErrGenerationFailed = errors.New("failed to generate cards")

	// ErrInvalidResponse is returned when the provider response cannot be
	// parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from content provider")

	// ErrNoValidCards is returned when the provider responded but no card
	// survived validation
	ErrNoValidCards = errors.New("provider returned no valid cards")

	// ErrContentBlocked is returned when the provider blocks the content due
	// to safety filters
	ErrContentBlocked = errors.New("content blocked by provider safety filters")

	// ErrTransientFailure is returned for temporary errors that might
	// resolve on retry
	ErrTransientFailure = errors.New("transient error during card generation")

	// ErrInvalidConfig is returned when the engine configuration is invalid
	ErrInvalidConfig = errors.New("invalid engine configuration")
)
