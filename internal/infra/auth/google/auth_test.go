package google

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"gatekeeper/config"
	"gatekeeper/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func newTestAuthService(now time.Time) *AuthServiceImpl {
	cfg := &config.Config{
		GoogleOAuth: &config.GoogleOAuthConfig{ClientID: "test_client_id"},
	}

	return NewAuthService(cfg, &fakeClock{now: now}, slog.Default()).(*AuthServiceImpl)
}

// buildIDToken assembles an unsigned JWT carrying the given claims. Signature
// verification is Google's job upstream; these tests cover claim validation.
func buildIDToken(t *testing.T, claims IDTokenClaims) string {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".invalid_signature"
}

func validClaims(now time.Time) IDTokenClaims {
	return IDTokenClaims{
		Iss:           "https://accounts.google.com",
		Sub:           "google_user_123",
		Aud:           "test_client_id",
		Exp:           now.Add(time.Hour).Unix(),
		Iat:           now.Unix(),
		Email:         "test@example.com",
		EmailVerified: true,
		Name:          "Test User",
		Picture:       "https://example.com/avatar.png",
	}
}

func TestAuthService_VerifyIDToken(t *testing.T) {
	now := time.Now()
	authService := newTestAuthService(now)

	token := buildIDToken(t, validClaims(now))

	oauthUser, err := authService.VerifyIDToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "google_user_123", oauthUser.ID)
	assert.Equal(t, "test@example.com", oauthUser.Email)
	assert.Equal(t, entity.ProviderGoogle, oauthUser.Provider)
	assert.True(t, oauthUser.EmailVerified)
}

func TestAuthService_WrongAudience(t *testing.T) {
	now := time.Now()
	authService := newTestAuthService(now)

	claims := validClaims(now)
	claims.Aud = "someone_elses_client"

	oauthUser, err := authService.VerifyIDToken(context.Background(), buildIDToken(t, claims))
	assert.Error(t, err)
	assert.Nil(t, oauthUser)
	assert.Contains(t, err.Error(), "token verification failed")
}

func TestAuthService_WrongIssuer(t *testing.T) {
	now := time.Now()
	authService := newTestAuthService(now)

	claims := validClaims(now)
	claims.Iss = "https://evil.example.com"

	oauthUser, err := authService.VerifyIDToken(context.Background(), buildIDToken(t, claims))
	assert.Error(t, err)
	assert.Nil(t, oauthUser)
}

func TestAuthService_ExpiredToken(t *testing.T) {
	now := time.Now()
	authService := newTestAuthService(now)

	claims := validClaims(now)
	claims.Exp = now.Add(-time.Minute).Unix()

	oauthUser, err := authService.VerifyIDToken(context.Background(), buildIDToken(t, claims))
	assert.Error(t, err)
	assert.Nil(t, oauthUser)
}

func TestAuthService_InvalidJWT(t *testing.T) {
	authService := newTestAuthService(time.Now())

	// Test invalid JWT format
	oauthUser, err := authService.VerifyIDToken(context.Background(), "invalid_token_format")
	assert.Error(t, err)
	assert.Nil(t, oauthUser)
	assert.Contains(t, err.Error(), "invalid JWT format")
}

func TestAuthService_GetProvider(t *testing.T) {
	authService := newTestAuthService(time.Now())

	assert.Equal(t, entity.ProviderGoogle, authService.GetProvider())
}
