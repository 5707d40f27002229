// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"gatekeeper/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// RegisterInput defines the data required to start a signup.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// VerifySignupInput carries the emailed code that proves address ownership.
type VerifySignupInput struct {
	Email string
	Code  string
}

// LoginInput defines the data required for a user to log in.
type LoginInput struct {
	Email    string
	Password string
}

// FederatedLoginInput carries the provider credential presented by the client:
// a Google ID token or a GitHub access token.
type FederatedLoginInput struct {
	Provider   entity.ProviderType
	Credential string
}

// ConfirmEmailInput carries the plaintext token from the verification link.
type ConfirmEmailInput struct {
	Token string
}

// --- Output DTOs ---

// RegisterOutput reports where the verification code was sent.
type RegisterOutput struct {
	Email string
}

// LoginOutput returns the generated tokens after a successful login.
type LoginOutput struct {
	AccessToken  string
	RefreshToken string
	User         *entity.User
}

// AuthUsecase defines the interface for signup and login operations.
// This is the contract that the delivery layer (e.g., API handlers) will depend on.
type AuthUsecase interface {
	// Register stages a pending enrollment and mails a one-time code.
	// No durable account exists until the code is verified.
	Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error)

	// VerifySignup consumes the pending enrollment exactly once and promotes
	// it into a verified user with a local credential, then logs the user in.
	VerifySignup(ctx context.Context, input VerifySignupInput) (*LoginOutput, error)

	// Login checks a local credential and issues a token pair.
	Login(ctx context.Context, input LoginInput) (*LoginOutput, error)

	// FederatedLogin verifies a provider credential and finds or creates the
	// matching user, then issues a token pair.
	FederatedLogin(ctx context.Context, input FederatedLoginInput) (*LoginOutput, error)

	// RequestEmailVerification mails a fresh ownership-confirmation link for
	// the user's address, replacing any earlier outstanding link.
	RequestEmailVerification(ctx context.Context, userID uuid.UUID) error

	// ConfirmEmailVerification redeems a verification token and marks the
	// account's email as verified.
	ConfirmEmailVerification(ctx context.Context, input ConfirmEmailInput) error
}
