// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"

	"gatekeeper/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrActionTokenNotFound is returned when no active action token matches a lookup.
var ErrActionTokenNotFound = errors.New("action token not found")

// ActionTokenRepository defines persistence for single-use, purpose-bound tokens
// (email verification, password reset, account deletion).
type ActionTokenRepository interface {
	// CreateActionToken persists a newly issued token record.
	CreateActionToken(ctx context.Context, token *entity.ActionToken) error

	// FindActiveByHash retrieves the unconsumed, unexpired token matching the given
	// hash and purpose. Consumed or expired records are reported as ErrActionTokenNotFound.
	FindActiveByHash(ctx context.Context, tokenHash string, purpose entity.TokenPurpose) (*entity.ActionToken, error)

	// ConsumeActionToken marks a token as redeemed and reports whether this call won.
	// The update is guarded on the token still being unconsumed, so under concurrent
	// redemption exactly one caller observes true.
	ConsumeActionToken(ctx context.Context, id uuid.UUID) (bool, error)

	// InvalidateActiveTokens consumes every still-active token a user holds for the
	// given purpose. Issuing a fresh token calls this first, so at most one token per
	// (user, purpose) is ever redeemable.
	InvalidateActiveTokens(ctx context.Context, userID uuid.UUID, purpose entity.TokenPurpose) error

	// DeleteActionTokensByUserID removes every token record belonging to a user.
	DeleteActionTokensByUserID(ctx context.Context, userID uuid.UUID) error
}
