package impl

import (
	"context"
	"testing"
	"time"

	"gatekeeper/internal/domain/entity"
	domainerrors "gatekeeper/internal/domain/errors"
	"gatekeeper/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionFixtures struct {
	service      usecase.SessionUsecase
	clock        *fakeClock
	userRepo     *fakeUserRepo
	refreshRepo  *fakeRefreshTokenRepo
	tokenService *fakeTokenService
}

func createTestSessionService(t *testing.T) sessionFixtures {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	userRepo := newFakeUserRepo()
	refreshRepo := newFakeRefreshTokenRepo(clock)
	tokenService := newFakeTokenService()
	txManager := &fakeTxManager{factory: &fakeRepoFactory{
		userRepo:        userRepo,
		authRepo:        newFakeAuthRepo(),
		refreshRepo:     refreshRepo,
		actionTokenRepo: newFakeActionTokenRepo(clock),
	}}

	svc := NewSessionService(SessionServiceParams{
		TxManager:        txManager,
		RefreshTokenRepo: refreshRepo,
		TokenService:     tokenService,
		Clock:            clock,
		Logger:           newDiscardLogger(),
	})

	return sessionFixtures{
		service:      svc,
		clock:        clock,
		userRepo:     userRepo,
		refreshRepo:  refreshRepo,
		tokenService: tokenService,
	}
}

// openSession seeds a user with one live session and returns the user and
// the plaintext refresh token, the way a login would have left them.
func openTestSession(t *testing.T, fx sessionFixtures) (*entity.User, string) {
	t.Helper()
	ctx := context.Background()

	user := &entity.User{Name: "Alice", Email: "alice@example.com", IsVerified: true}
	require.NoError(t, fx.userRepo.Create(ctx, user))

	return user, openExtraSession(t, fx, user)
}

func openExtraSession(t *testing.T, fx sessionFixtures, user *entity.User) string {
	t.Helper()

	_, refreshToken, err := fx.tokenService.GenerateTokens(user)
	require.NoError(t, err)
	require.NoError(t, fx.refreshRepo.CreateRefreshToken(context.Background(), &entity.RefreshToken{
		UserID:    user.ID,
		TokenHash: fx.tokenService.HashToken(refreshToken),
		ExpiresAt: fx.clock.Now().Add(fx.tokenService.GetRefreshTokenDuration()),
	}))

	return refreshToken
}

func TestSessionService_Refresh_RotatesToken(t *testing.T) {
	fx := createTestSessionService(t)
	ctx := context.Background()
	user, oldToken := openTestSession(t, fx)

	output, err := fx.service.Refresh(ctx, usecase.RefreshInput{RefreshToken: oldToken})
	require.NoError(t, err)
	require.NotEmpty(t, output.AccessToken)
	require.NotEmpty(t, output.RefreshToken)
	assert.NotEqual(t, oldToken, output.RefreshToken)

	// The retired hash is gone; the replacement is live.
	_, err = fx.refreshRepo.FindRefreshTokenByHash(ctx, fx.tokenService.HashToken(oldToken))
	assert.Error(t, err)
	_, err = fx.refreshRepo.FindRefreshTokenByHash(ctx, fx.tokenService.HashToken(output.RefreshToken))
	assert.NoError(t, err)

	count, err := fx.refreshRepo.CountActiveSessionsByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSessionService_Refresh_ReplayRevokesWholeFamily(t *testing.T) {
	fx := createTestSessionService(t)
	ctx := context.Background()
	user, oldToken := openTestSession(t, fx)

	output, err := fx.service.Refresh(ctx, usecase.RefreshInput{RefreshToken: oldToken})
	require.NoError(t, err)

	// Replaying the retired token is treated as theft.
	_, err = fx.service.Refresh(ctx, usecase.RefreshInput{RefreshToken: oldToken})
	require.Error(t, err)

	var appErr domainerrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, domainerrors.ErrUnauthorized.ErrorCode(), appErr.ErrorCode())

	// The freshly issued token died with the family.
	count, err := fx.refreshRepo.CountActiveSessionsByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = fx.service.Refresh(ctx, usecase.RefreshInput{RefreshToken: output.RefreshToken})
	require.Error(t, err)
}

func TestSessionService_Refresh_GarbageTokenDoesNotRevoke(t *testing.T) {
	fx := createTestSessionService(t)
	ctx := context.Background()
	user, _ := openTestSession(t, fx)

	_, err := fx.service.Refresh(ctx, usecase.RefreshInput{RefreshToken: "not-a-token"})
	require.Error(t, err)

	// An unverifiable token names no subject, so no family is touched.
	count, err := fx.refreshRepo.CountActiveSessionsByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSessionService_Refresh_ExpiredSessionRevokesFamily(t *testing.T) {
	fx := createTestSessionService(t)
	ctx := context.Background()
	_, token := openTestSession(t, fx)

	// The stored row expires while the signed token is still parseable.
	fx.clock.Advance(8 * 24 * time.Hour)

	_, err := fx.service.Refresh(ctx, usecase.RefreshInput{RefreshToken: token})
	require.Error(t, err)

	var appErr domainerrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, domainerrors.ErrUnauthorized.ErrorCode(), appErr.ErrorCode())
}

func TestSessionService_Logout_RemovesSession(t *testing.T) {
	fx := createTestSessionService(t)
	ctx := context.Background()
	user, token := openTestSession(t, fx)

	require.NoError(t, fx.service.Logout(ctx, usecase.LogoutInput{RefreshToken: token}))

	count, err := fx.refreshRepo.CountActiveSessionsByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Logging out twice is harmless.
	assert.NoError(t, fx.service.Logout(ctx, usecase.LogoutInput{RefreshToken: token}))
}

func TestSessionService_LogoutAll(t *testing.T) {
	fx := createTestSessionService(t)
	ctx := context.Background()
	user, _ := openTestSession(t, fx)
	openExtraSession(t, fx, user)
	openExtraSession(t, fx, user)

	require.NoError(t, fx.service.LogoutAll(ctx, user.ID))

	count, err := fx.refreshRepo.CountActiveSessionsByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSessionService_GetActiveSessions(t *testing.T) {
	fx := createTestSessionService(t)
	ctx := context.Background()
	user, _ := openTestSession(t, fx)
	openExtraSession(t, fx, user)

	sessions, err := fx.service.GetActiveSessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestSessionService_RevokeSession_ChecksOwnership(t *testing.T) {
	fx := createTestSessionService(t)
	ctx := context.Background()
	user, _ := openTestSession(t, fx)

	sessions, err := fx.service.GetActiveSessions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	// A stranger cannot revoke someone else's session.
	err = fx.service.RevokeSession(ctx, uuid.New(), sessions[0].ID)
	require.Error(t, err)

	require.NoError(t, fx.service.RevokeSession(ctx, user.ID, sessions[0].ID))

	remaining, err := fx.service.GetActiveSessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
