// Package auth verifies the bearer credentials presented on inbound
// connections and issues the tokens those credentials are derived from.
// Token issuing itself (login, refresh) belongs to the wider platform; this
// package only needs enough of it to mint tokens for tests and operational
// tooling.
package auth

import (
	"context"

	"github.com/google/uuid"
)

// UserIdentity is the verified identity extracted from a bearer credential.
type UserIdentity struct {
	UserID uuid.UUID
}

// Verifier validates opaque bearer credentials presented during the
// connection handshake.
type Verifier interface {
	// Verify validates the credential and extracts the user identity.
	// Returns ErrMissingToken, ErrExpiredToken, ErrTokenNotYetValid, or
	// ErrInvalidToken so callers can refuse the connection with a typed
	// reason.
	Verify(ctx context.Context, credential string) (*UserIdentity, error)
}

// TokenIssuer mints signed bearer tokens for a user identity.
type TokenIssuer interface {
	// IssueToken creates a signed token for the given user.
	IssueToken(ctx context.Context, userID uuid.UUID) (string, error)
}
