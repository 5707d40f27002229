package service

import (
	"time"

	"gatekeeper/internal/domain/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token type claims. Access and refresh tokens are signed with distinct
// secrets, so a refresh token can never pass access-token validation even
// before the type claim is checked.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims defines the custom claims for the JWT tokens.
type Claims struct {
	UserID   uuid.UUID
	Email    string
	Verified bool
	Type     string // "access" or "refresh"
	jwt.RegisteredClaims
}

// TokenService defines the interface for generating and validating JWTs.
// This abstracts the details of token creation from the use cases.
type TokenService interface {
	// GenerateTokens creates a new access token and refresh token for a given user.
	GenerateTokens(user *entity.User) (accessToken string, refreshToken string, err error)

	// ValidateAccessToken checks the signature, expiry, and type of an access token.
	ValidateAccessToken(tokenString string) (*Claims, error)

	// ValidateRefreshToken checks the signature, expiry, and type of a refresh token.
	ValidateRefreshToken(tokenString string) (*Claims, error)

	// HashToken returns the hex-encoded SHA-256 hash of a signed token,
	// the form in which refresh tokens are persisted.
	HashToken(token string) string

	// GetRefreshTokenDuration returns the configured duration for refresh tokens.
	GetRefreshTokenDuration() time.Duration
}
