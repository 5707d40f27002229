// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gatekeeper/config"
	"gatekeeper/internal/domain/entity"
	"gatekeeper/internal/domain/service"
	"gatekeeper/internal/errors"
)

// jwtService is a concrete implementation of the TokenService interface using the JWT standard.
type jwtService struct {
	accessSecret  string        // Secret key for signing access tokens.
	refreshSecret string        // Secret key for signing refresh tokens.
	accessTTL     time.Duration // Time-to-live for access tokens.
	refreshTTL    time.Duration // Time-to-live for refresh tokens.
	clock         service.Clock
}

// NewJWTService is the constructor for jwtService.
// It takes configuration values to create a new token service instance.
func NewJWTService(cfg *config.Config, clock service.Clock) (service.TokenService, error) {
	if cfg.SecretKey.Access == "" || cfg.SecretKey.Refresh == "" {
		return nil, errors.New("jwt secrets must be provided")
	}
	if cfg.SecretKey.Access == cfg.SecretKey.Refresh {
		return nil, errors.New("access and refresh secrets must differ")
	}

	return &jwtService{
		accessSecret:  cfg.SecretKey.Access,
		refreshSecret: cfg.SecretKey.Refresh,
		accessTTL:     cfg.Auth.AccessTokenTTL,
		refreshTTL:    cfg.Auth.RefreshTokenTTL,
		clock:         clock,
	}, nil
}

// GenerateTokens creates a new access token and refresh token for a given user.
func (s *jwtService) GenerateTokens(user *entity.User) (accessToken string, refreshToken string, err error) {
	accessToken, err = s.generateToken(user, s.accessTTL, s.accessSecret, service.TokenTypeAccess)
	if err != nil {
		return "", "", err
	}

	refreshToken, err = s.generateToken(user, s.refreshTTL, s.refreshSecret, service.TokenTypeRefresh)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

// ValidateAccessToken checks the signature, expiry, and type of an access token.
func (s *jwtService) ValidateAccessToken(tokenString string) (*service.Claims, error) {
	return s.validateToken(tokenString, s.accessSecret, service.TokenTypeAccess)
}

// ValidateRefreshToken checks the signature, expiry, and type of a refresh token.
func (s *jwtService) ValidateRefreshToken(tokenString string) (*service.Claims, error) {
	return s.validateToken(tokenString, s.refreshSecret, service.TokenTypeRefresh)
}

// HashToken returns the hex-encoded SHA-256 hash of a signed token.
func (s *jwtService) HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}

// GetRefreshTokenDuration returns the configured duration for refresh tokens.
func (s *jwtService) GetRefreshTokenDuration() time.Duration {
	return s.refreshTTL
}

// tokenClaims is the wire form of service.Claims.
type tokenClaims struct {
	Email    string `json:"email,omitempty"`
	Verified bool   `json:"verified,omitempty"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// generateToken is a private helper to create a JWT with specific claims.
func (s *jwtService) generateToken(user *entity.User, ttl time.Duration, secret, tokenType string) (string, error) {
	now := s.clock.Now()
	claims := tokenClaims{
		Email:    user.Email,
		Verified: user.IsVerified,
		Type:     tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}

	return signed, nil
}

// validateToken parses and checks a token against a secret and expected type.
// All failure modes (bad signature, expired, wrong type, garbage input) look
// the same to callers so nothing leaks about which check failed.
func (s *jwtService) validateToken(tokenString, secret, wantType string) (*service.Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(token *jwt.Token) (any, error) {
		// Ensure the signing method is what we expect.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return []byte(secret), nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse token structure")
	}

	wire, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if wire.Type != wantType {
		return nil, errors.Errorf("unexpected token type %q", wire.Type)
	}

	userID, err := uuid.Parse(wire.Subject)
	if err != nil {
		return nil, errors.Wrap(err, "parse token subject")
	}

	return &service.Claims{
		UserID:           userID,
		Email:            wire.Email,
		Verified:         wire.Verified,
		Type:             wire.Type,
		RegisteredClaims: wire.RegisteredClaims,
	}, nil
}
