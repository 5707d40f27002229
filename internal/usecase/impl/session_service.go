// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	stderrors "errors"
	"log/slog"

	deliverycontext "gatekeeper/internal/delivery/context"
	"gatekeeper/internal/domain/entity"
	domainerrors "gatekeeper/internal/domain/errors"
	"gatekeeper/internal/domain/repository"
	"gatekeeper/internal/domain/service"
	"gatekeeper/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// errReplayDetected signals that a presented refresh token was already
// rotated or revoked. The transaction it surfaces from is rolled back, and
// the family revocation runs outside it so the rollback cannot undo it.
var errReplayDetected = stderrors.New("refresh token replay detected")

// sessionService implements the SessionUsecase interface.
type sessionService struct {
	txManager        repository.TransactionManager
	refreshTokenRepo repository.RefreshTokenRepository
	tokenService     service.TokenService
	clock            service.Clock
	logger           *slog.Logger
}

// SessionServiceParams holds dependencies for sessionService, injected by Fx.
type SessionServiceParams struct {
	fx.In

	TxManager        repository.TransactionManager
	RefreshTokenRepo repository.RefreshTokenRepository
	TokenService     service.TokenService
	Clock            service.Clock
	Logger           *slog.Logger
}

// NewSessionService is the constructor for sessionService.
func NewSessionService(params SessionServiceParams) usecase.SessionUsecase {
	return &sessionService{
		txManager:        params.TxManager,
		refreshTokenRepo: params.RefreshTokenRepo,
		tokenService:     params.TokenService,
		clock:            params.Clock,
		logger:           params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *sessionService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Refresh rotates a refresh token: the presented token is retired and a fresh
// pair is issued. A token whose signature checks out but whose hash is gone
// was already rotated; presenting it is treated as theft and every session of
// the user is revoked.
func (srv *sessionService) Refresh(ctx context.Context, input usecase.RefreshInput) (*usecase.RefreshOutput, error) {
	srv.log(ctx).Debug("Attempting to rotate refresh token")

	claims, err := srv.tokenService.ValidateRefreshToken(input.RefreshToken)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrUnauthorized, "invalid refresh token")
	}

	tokenHash := srv.tokenService.HashToken(input.RefreshToken)

	var output *usecase.RefreshOutput
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		refreshRepo := repoFactory.NewRefreshTokenRepository()

		stored, err := refreshRepo.FindRefreshTokenByHash(ctx, tokenHash)
		if err != nil {
			if errors.Is(err, repository.ErrRefreshTokenNotFound) {
				return errReplayDetected
			}

			return errors.Wrap(err, "failed to find refresh token")
		}

		// A hash stored for a different subject than the one the signature
		// claims means the token no longer belongs to this user.
		if stored.UserID != claims.UserID {
			return errReplayDetected
		}

		// The delete is the fencing point: of two concurrent rotations of the
		// same token, exactly one sees a row disappear.
		deleted, err := refreshRepo.DeleteRefreshTokenByHash(ctx, tokenHash)
		if err != nil {
			return errors.Wrap(err, "failed to retire refresh token")
		}
		if deleted == 0 {
			return errReplayDetected
		}

		user, err := repoFactory.NewUserRepository().FindByID(ctx, claims.UserID)
		if err != nil {
			return errors.Wrap(err, "failed to find user during rotation")
		}

		accessToken, refreshTokenString, err := srv.tokenService.GenerateTokens(user)
		if err != nil {
			return errors.Wrap(err, "failed to generate replacement tokens")
		}

		newRefreshToken := &entity.RefreshToken{
			UserID:    user.ID,
			TokenHash: srv.tokenService.HashToken(refreshTokenString),
			ExpiresAt: srv.clock.Now().Add(srv.tokenService.GetRefreshTokenDuration()),
		}
		if err := refreshRepo.CreateRefreshToken(ctx, newRefreshToken); err != nil {
			return errors.Wrap(err, "failed to store replacement refresh token")
		}

		output = &usecase.RefreshOutput{
			AccessToken:  accessToken,
			RefreshToken: refreshTokenString,
		}

		return nil
	})

	if errors.Is(err, errReplayDetected) {
		srv.log(ctx).Warn("Refresh token replay detected, revoking all sessions", slog.Any("userID", claims.UserID))

		// Outside the rolled-back transaction, so the revocation sticks.
		if revokeErr := srv.refreshTokenRepo.DeleteRefreshTokensByUserID(ctx, claims.UserID); revokeErr != nil {
			srv.log(ctx).Error("Failed to revoke session family", slog.Any("userID", claims.UserID), slog.Any("error", revokeErr))
		}

		return nil, errors.Wrap(domainerrors.ErrUnauthorized, "refresh token reuse detected")
	}
	if err != nil {
		srv.log(ctx).Error("Failed to execute refresh rotation transaction", slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute refresh rotation transaction")
	}

	srv.log(ctx).Debug("Refresh token rotated", slog.Any("userID", claims.UserID))

	return output, nil
}

// Logout ends the session identified by the presented refresh token.
func (srv *sessionService) Logout(ctx context.Context, input usecase.LogoutInput) error {
	srv.log(ctx).Info("Attempting to log out")

	if _, err := srv.tokenService.ValidateRefreshToken(input.RefreshToken); err != nil {
		// Even if the token is invalid, proceed to delete its hash.
		srv.log(ctx).Warn("Logout with invalid token", slog.Any("error", err))
	}

	tokenHash := srv.tokenService.HashToken(input.RefreshToken)

	// Logging out an already-gone session is not an error.
	if _, err := srv.refreshTokenRepo.DeleteRefreshTokenByHash(ctx, tokenHash); err != nil {
		srv.log(ctx).Error("Failed to delete refresh token", slog.Any("error", err))

		return errors.Wrap(err, "failed to delete refresh token")
	}
	srv.log(ctx).Info("Successfully logged out")

	return nil
}

// LogoutAll ends every session the user holds.
func (srv *sessionService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	srv.log(ctx).Info("Attempting to log out from all devices", slog.Any("userID", userID))

	if err := srv.refreshTokenRepo.DeleteRefreshTokensByUserID(ctx, userID); err != nil {
		srv.log(ctx).Error("Failed to delete all refresh tokens", slog.Any("error", err), slog.Any("userID", userID))

		return errors.Wrap(err, "failed to delete all refresh tokens")
	}
	srv.log(ctx).Info("Successfully logged out from all devices", slog.Any("userID", userID))

	return nil
}

// GetActiveSessions retrieves all active sessions for a user.
func (srv *sessionService) GetActiveSessions(ctx context.Context, userID uuid.UUID) ([]*entity.RefreshToken, error) {
	srv.log(ctx).Debug("Getting active sessions", slog.Any("userID", userID))

	sessions, err := srv.refreshTokenRepo.FindRefreshTokensByUserID(ctx, userID)
	if err != nil {
		srv.log(ctx).Error("Failed to get active sessions", slog.Any("error", err), slog.Any("userID", userID))

		return nil, errors.Wrap(err, "failed to get active sessions")
	}

	return sessions, nil
}

// RevokeSession revokes a specific session by refresh token ID.
func (srv *sessionService) RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	srv.log(ctx).Info("Attempting to revoke session", slog.Any("userID", userID), slog.Any("sessionID", sessionID))

	sessions, err := srv.refreshTokenRepo.FindRefreshTokensByUserID(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "failed to list sessions")
	}

	for _, session := range sessions {
		if session.ID == sessionID {
			if err := srv.refreshTokenRepo.DeleteRefreshToken(ctx, sessionID); err != nil {
				return errors.Wrap(err, "failed to delete refresh token")
			}
			srv.log(ctx).Info("Successfully revoked session", slog.Any("userID", userID), slog.Any("sessionID", sessionID))

			return nil
		}
	}

	// Listing only the user's own sessions makes this an ownership check too.
	return errors.Wrap(domainerrors.ErrNotFound, "session not found")
}
