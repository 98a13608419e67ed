package auth

import "errors"

// Common authentication service errors. Each maps to a typed handshake
// refusal reason on the gateway.
var (
	// ErrMissingToken indicates a credential was expected but not provided.
	ErrMissingToken = errors.New("authentication token is missing")

	// ErrInvalidToken indicates the token is malformed or its signature
	// doesn't match.
	ErrInvalidToken = errors.New("invalid authentication token")

	// ErrExpiredToken indicates the token has expired.
	ErrExpiredToken = errors.New("authentication token has expired")

	// ErrTokenNotYetValid indicates the token is not yet valid (nbf claim in
	// the future).
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")
)
