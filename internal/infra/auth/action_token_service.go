// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"gatekeeper/internal/domain/entity"
	"gatekeeper/internal/domain/repository"
	"gatekeeper/internal/domain/service"
	"gatekeeper/internal/errors"
)

// actionTokenSecretLen is the number of random bytes behind each token.
const actionTokenSecretLen = 32

// actionTokenService issues and redeems single-use, purpose-bound tokens.
// Only the SHA-256 hash of the secret ever reaches storage.
type actionTokenService struct {
	tokens repository.ActionTokenRepository
	clock  service.Clock
}

// NewActionTokenService is the constructor for actionTokenService.
func NewActionTokenService(tokens repository.ActionTokenRepository, clock service.Clock) service.ActionTokenService {
	return &actionTokenService{
		tokens: tokens,
		clock:  clock,
	}
}

// Issue creates a fresh token for the user and purpose. Any token the user
// still holds for that purpose is invalidated first, so only the newest link
// in their inbox works.
func (s *actionTokenService) Issue(ctx context.Context, userID uuid.UUID, purpose entity.TokenPurpose, ttl time.Duration) (string, error) {
	if !purpose.IsValid() {
		return "", errors.Errorf("invalid token purpose %q", purpose)
	}

	secret := make([]byte, actionTokenSecretLen)
	if _, err := rand.Read(secret); err != nil {
		return "", errors.Wrap(err, "generate token secret")
	}
	plaintext := base64.RawURLEncoding.EncodeToString(secret)

	if err := s.tokens.InvalidateActiveTokens(ctx, userID, purpose); err != nil {
		return "", errors.Wrap(err, "invalidate previous tokens")
	}

	now := s.clock.Now()
	token := &entity.ActionToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: hashActionToken(plaintext),
		Purpose:   purpose,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.tokens.CreateActionToken(ctx, token); err != nil {
		return "", errors.Wrap(err, "persist action token")
	}

	return plaintext, nil
}

// Redeem consumes the token and returns the user it authorizes. The consume
// is a guarded update, so two concurrent redemptions of the same token yield
// exactly one winner.
func (s *actionTokenService) Redeem(ctx context.Context, plaintext string, purpose entity.TokenPurpose) (uuid.UUID, error) {
	token, err := s.tokens.FindActiveByHash(ctx, hashActionToken(plaintext), purpose)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "look up action token")
	}

	if !token.IsActive(s.clock.Now()) {
		return uuid.Nil, errors.WithStack(repository.ErrActionTokenNotFound)
	}

	won, err := s.tokens.ConsumeActionToken(ctx, token.ID)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "consume action token")
	}
	if !won {
		return uuid.Nil, errors.WithStack(repository.ErrActionTokenNotFound)
	}

	return token.UserID, nil
}

// hashActionToken returns the hex-encoded SHA-256 lookup hash of a plaintext token.
func hashActionToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))

	return hex.EncodeToString(sum[:])
}
