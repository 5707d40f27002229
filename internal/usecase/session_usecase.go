// Package usecase contains the application-specific business rules.
package usecase

import (
	"context"

	"gatekeeper/internal/domain/entity"

	"github.com/google/uuid"
)

// RefreshInput carries the presented refresh token.
type RefreshInput struct {
	RefreshToken string
}

// RefreshOutput returns the replacement token pair after a successful rotation.
type RefreshOutput struct {
	AccessToken  string
	RefreshToken string
}

// LogoutInput carries the refresh token of the session being ended.
type LogoutInput struct {
	RefreshToken string
}

// SessionUsecase defines the interface for session management operations.
type SessionUsecase interface {
	// Refresh rotates a refresh token: the presented token is retired and a
	// fresh pair is issued. Replay of a retired token revokes every session
	// of the affected user.
	Refresh(ctx context.Context, input RefreshInput) (*RefreshOutput, error)

	// Logout ends the session identified by the presented refresh token.
	Logout(ctx context.Context, input LogoutInput) error

	// LogoutAll ends every session the user holds.
	LogoutAll(ctx context.Context, userID uuid.UUID) error

	// GetActiveSessions lists the user's live sessions.
	GetActiveSessions(ctx context.Context, userID uuid.UUID) ([]*entity.RefreshToken, error)

	// RevokeSession ends one session by ID, verifying it belongs to the user.
	RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error
}
