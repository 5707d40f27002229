package service

import (
	"context"
	"time"

	"gatekeeper/internal/domain/entity"

	"github.com/google/uuid"
)

// ActionTokenService issues and redeems single-use, purpose-bound tokens for
// sensitive account operations. The plaintext token is returned once at issue
// time and only its hash is ever stored.
type ActionTokenService interface {
	// Issue creates a fresh token for the user and purpose, invalidating any
	// token the user still holds for that purpose. The returned string is the
	// plaintext secret to embed in the email link.
	Issue(ctx context.Context, userID uuid.UUID, purpose entity.TokenPurpose, ttl time.Duration) (string, error)

	// Redeem consumes the token and returns the user it authorizes. Unknown,
	// expired, consumed, and wrong-purpose tokens all fail identically.
	Redeem(ctx context.Context, plaintext string, purpose entity.TokenPurpose) (uuid.UUID, error)
}
