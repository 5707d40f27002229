package auth

import (
	"testing"
	"time"

	"gatekeeper/config"
	"gatekeeper/internal/domain/entity"
	"gatekeeper/internal/domain/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestJWTConfig() *config.Config {
	cfg := &config.Config{
		Auth: &config.AuthConfig{
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
	}
	cfg.SecretKey.Access = "test_access_secret_key_very_long_for_testing"
	cfg.SecretKey.Refresh = "test_refresh_secret_key_very_long_for_testing"

	return cfg
}

func newTestUser() *entity.User {
	return &entity.User{
		ID:         uuid.New(),
		Email:      "user@example.com",
		IsVerified: true,
	}
}

func TestJWTService_GenerateAndValidateTokens(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	jwtService, err := NewJWTService(newTestJWTConfig(), clock)
	require.NoError(t, err)
	require.NotNil(t, jwtService)

	user := newTestUser()

	accessToken, refreshToken, err := jwtService.GenerateTokens(user)
	require.NoError(t, err)
	assert.NotEmpty(t, accessToken)
	assert.NotEmpty(t, refreshToken)
	assert.NotEqual(t, accessToken, refreshToken)

	// Validate access token
	accessClaims, err := jwtService.ValidateAccessToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, accessClaims.UserID)
	assert.Equal(t, user.Email, accessClaims.Email)
	assert.True(t, accessClaims.Verified)
	assert.Equal(t, service.TokenTypeAccess, accessClaims.Type)

	// Validate refresh token
	refreshClaims, err := jwtService.ValidateRefreshToken(refreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, refreshClaims.UserID)
	assert.Equal(t, service.TokenTypeRefresh, refreshClaims.Type)
}

func TestJWTService_TokensAreNotInterchangeable(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	jwtService, err := NewJWTService(newTestJWTConfig(), clock)
	require.NoError(t, err)

	accessToken, refreshToken, err := jwtService.GenerateTokens(newTestUser())
	require.NoError(t, err)

	// A refresh token must never pass access-token validation and vice versa.
	_, err = jwtService.ValidateAccessToken(refreshToken)
	assert.Error(t, err)

	_, err = jwtService.ValidateRefreshToken(accessToken)
	assert.Error(t, err)
}

func TestJWTService_AccessTokenExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	jwtService, err := NewJWTService(newTestJWTConfig(), clock)
	require.NoError(t, err)

	accessToken, _, err := jwtService.GenerateTokens(newTestUser())
	require.NoError(t, err)

	// Still valid one minute before the 15-minute expiry.
	clock.Advance(14 * time.Minute)
	_, err = jwtService.ValidateAccessToken(accessToken)
	assert.NoError(t, err)

	// Rejected one minute past expiry.
	clock.Advance(2 * time.Minute)
	_, err = jwtService.ValidateAccessToken(accessToken)
	assert.Error(t, err)
}

func TestJWTService_InvalidToken(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	jwtService, err := NewJWTService(newTestJWTConfig(), clock)
	require.NoError(t, err)

	// Test invalid token - using clearly non-JWT format
	invalidToken := "clearly-not-a-jwt-token-format"
	claims, err := jwtService.ValidateAccessToken(invalidToken)
	assert.Error(t, err)
	assert.Nil(t, claims)
	assert.Contains(t, err.Error(), "failed to parse token structure")
}

func TestJWTService_TamperedToken(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	jwtService, err := NewJWTService(newTestJWTConfig(), clock)
	require.NoError(t, err)

	accessToken, _, err := jwtService.GenerateTokens(newTestUser())
	require.NoError(t, err)

	// Flip the last character of the signature.
	tampered := accessToken[:len(accessToken)-1] + "x"
	if tampered == accessToken {
		tampered = accessToken[:len(accessToken)-1] + "y"
	}

	claims, err := jwtService.ValidateAccessToken(tampered)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestJWTService_EmptySecrets(t *testing.T) {
	cfg := newTestJWTConfig()
	cfg.SecretKey.Access = ""
	cfg.SecretKey.Refresh = ""

	// Should fail to create service
	jwtService, err := NewJWTService(cfg, &fakeClock{now: time.Now()})
	assert.Error(t, err)
	assert.Nil(t, jwtService)
	assert.Contains(t, err.Error(), "jwt secrets must be provided")
}

func TestJWTService_IdenticalSecretsRejected(t *testing.T) {
	cfg := newTestJWTConfig()
	cfg.SecretKey.Refresh = cfg.SecretKey.Access

	jwtService, err := NewJWTService(cfg, &fakeClock{now: time.Now()})
	assert.Error(t, err)
	assert.Nil(t, jwtService)
}

func TestJWTService_HashTokenIsStable(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	jwtService, err := NewJWTService(newTestJWTConfig(), clock)
	require.NoError(t, err)

	hash := jwtService.HashToken("some-token")
	assert.Len(t, hash, 64) // hex-encoded sha256
	assert.Equal(t, hash, jwtService.HashToken("some-token"))
	assert.NotEqual(t, hash, jwtService.HashToken("other-token"))
}

func TestJWTService_GetRefreshTokenDuration(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	jwtService, err := NewJWTService(newTestJWTConfig(), clock)
	require.NoError(t, err)

	// Check refresh token duration
	duration := jwtService.GetRefreshTokenDuration()
	expectedDuration := time.Hour * 24 * 7 // 7 days
	assert.Equal(t, expectedDuration, duration)
}
