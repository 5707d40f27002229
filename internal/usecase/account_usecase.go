// Package usecase contains the application-specific business rules.
package usecase

import (
	"context"

	"gatekeeper/internal/domain/entity"

	"github.com/google/uuid"
)

// ForgotPasswordInput carries the address claiming to have lost its password.
type ForgotPasswordInput struct {
	Email string
}

// ResetPasswordInput carries the reset token and the replacement password.
type ResetPasswordInput struct {
	Token       string
	NewPassword string
}

// ConfirmDeletionInput carries the plaintext token from the deletion link.
type ConfirmDeletionInput struct {
	Token string
}

// AccountUsecase defines the interface for account self-service operations.
type AccountUsecase interface {
	// GetProfile returns the user row behind an authenticated principal.
	GetProfile(ctx context.Context, userID uuid.UUID) (*entity.User, error)

	// ForgotPassword mails a reset link when the address has a local
	// credential. It reveals nothing about whether the address is known.
	ForgotPassword(ctx context.Context, input ForgotPasswordInput) error

	// ResetPassword redeems a reset token, replaces the password digest, and
	// revokes every session the user holds.
	ResetPassword(ctx context.Context, input ResetPasswordInput) error

	// RequestDeletion mails a deletion-confirmation link, replacing any
	// earlier outstanding link.
	RequestDeletion(ctx context.Context, userID uuid.UUID) error

	// ConfirmDeletion redeems a deletion token and removes the account with
	// everything attached to it.
	ConfirmDeletion(ctx context.Context, input ConfirmDeletionInput) error
}
