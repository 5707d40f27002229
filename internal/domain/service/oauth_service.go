package service

import (
	"context"

	"gatekeeper/internal/domain/entity"
)

// OAuthUser represents user information asserted by an OAuth provider.
type OAuthUser struct {
	ID            string              // Provider-specific user ID (e.g., Google's 'sub' claim)
	Email         string              // User's email address as reported by the provider
	Name          string              // User's display name
	Provider      entity.ProviderType // The OAuth provider (google, github)
	AvatarURL     string              // URL to user's profile picture
	EmailVerified bool                // Whether the provider vouches for the email address
}

// OAuthAuthService defines the interface for OAuth authentication operations.
// Implementations verify a provider credential (a Google ID token, a GitHub
// access token) and normalize the asserted identity into an OAuthUser.
type OAuthAuthService interface {
	// VerifyIDToken verifies a provider credential and returns the asserted identity.
	VerifyIDToken(ctx context.Context, idToken string) (*OAuthUser, error)

	// GetProvider returns the OAuth provider type.
	GetProvider() entity.ProviderType
}
