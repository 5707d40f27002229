// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"

	"gatekeeper/config"
	deliverycontext "gatekeeper/internal/delivery/context"
	"gatekeeper/internal/domain/entity"
	"gatekeeper/internal/domain/repository"
	"gatekeeper/internal/domain/service"
	"gatekeeper/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// accountService implements the AccountUsecase interface.
type accountService struct {
	txManager         repository.TransactionManager
	userRepo          repository.UserRepository
	authRepo          repository.AuthRepository
	hasher            service.PasswordHasher
	passwordValidator service.PasswordValidator
	actionTokens      service.ActionTokenService
	mailer            service.Mailer
	cfg               *config.Config
	logger            *slog.Logger
}

// AccountServiceParams holds dependencies for accountService, injected by Fx.
type AccountServiceParams struct {
	fx.In

	TxManager         repository.TransactionManager
	UserRepo          repository.UserRepository
	AuthRepo          repository.AuthRepository
	Hasher            service.PasswordHasher
	PasswordValidator service.PasswordValidator
	ActionTokens      service.ActionTokenService
	Mailer            service.Mailer
	Config            *config.Config
	Logger            *slog.Logger
}

// NewAccountService is the constructor for accountService.
func NewAccountService(params AccountServiceParams) usecase.AccountUsecase {
	return &accountService{
		txManager:         params.TxManager,
		userRepo:          params.UserRepo,
		authRepo:          params.AuthRepo,
		hasher:            params.Hasher,
		passwordValidator: params.PasswordValidator,
		actionTokens:      params.ActionTokens,
		mailer:            params.Mailer,
		cfg:               params.Config,
		logger:            params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *accountService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// GetProfile returns the user row behind an authenticated principal.
func (srv *accountService) GetProfile(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}

	return user, nil
}

// ForgotPassword mails a reset link when the address holds a local credential.
// The response never reveals whether the address is known.
func (srv *accountService) ForgotPassword(ctx context.Context, input usecase.ForgotPasswordInput) error {
	email := normalizeEmail(input.Email)
	srv.log(ctx).Info("Password reset requested", slog.String("email", email))

	authRecord, err := srv.authRepo.FindAuthentication(ctx, entity.ProviderLocal, email)
	if err != nil {
		if errors.Is(err, repository.ErrAuthNotFound) {
			srv.log(ctx).Debug("Password reset for unknown or federated-only email", slog.String("email", email))

			return nil
		}

		return errors.Wrap(err, "failed to find authentication")
	}

	user, err := srv.userRepo.FindByID(ctx, authRecord.UserID)
	if err != nil {
		return errors.Wrap(err, "failed to find user for password reset")
	}

	plaintext, err := srv.actionTokens.Issue(ctx, user.ID, entity.PurposePasswordReset, srv.cfg.ActionToken.PasswordResetTTL)
	if err != nil {
		return errors.Wrap(err, "failed to issue password reset token")
	}

	link := buildActionLink(srv.cfg.Mail.FrontendURL, resetPasswordPath, plaintext)
	if err := srv.mailer.SendPasswordResetLink(ctx, user.Email, user.Name, link); err != nil {
		srv.log(ctx).Warn("Failed to send password reset link", slog.Any("userID", user.ID), slog.Any("error", err))
	}

	return nil
}

// ResetPassword redeems a reset token, replaces the password digest, and
// revokes every session the user holds.
func (srv *accountService) ResetPassword(ctx context.Context, input usecase.ResetPasswordInput) error {
	// Validate before redeeming so a weak password does not burn the token.
	if err := srv.passwordValidator.Validate(input.NewPassword); err != nil {
		return errors.Wrap(err, "password does not meet security requirements")
	}

	userID, err := srv.actionTokens.Redeem(ctx, input.Token, entity.PurposePasswordReset)
	if err != nil {
		srv.log(ctx).Warn("Password reset token rejected", slog.Any("error", err))

		return errors.Wrap(err, "failed to redeem password reset token")
	}

	hashedPassword, err := srv.hasher.Hash(input.NewPassword)
	if err != nil {
		return errors.Wrap(err, "failed to hash new password")
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := repoFactory.NewAuthRepository().UpdatePasswordHash(ctx, userID, hashedPassword); err != nil {
			return errors.Wrap(err, "failed to update password hash")
		}

		// A stolen-password recovery must end every live session.
		if err := repoFactory.NewRefreshTokenRepository().DeleteRefreshTokensByUserID(ctx, userID); err != nil {
			return errors.Wrap(err, "failed to revoke sessions after password reset")
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Error("Failed to execute password reset transaction", slog.Any("userID", userID), slog.Any("error", err))

		return errors.Wrap(err, "failed to execute password reset transaction")
	}

	srv.log(ctx).Info("Password reset completed", slog.Any("userID", userID))

	return nil
}

// RequestDeletion mails a deletion-confirmation link, replacing any earlier
// outstanding one.
func (srv *accountService) RequestDeletion(ctx context.Context, userID uuid.UUID) error {
	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "failed to find user for deletion request")
	}

	plaintext, err := srv.actionTokens.Issue(ctx, user.ID, entity.PurposeAccountDelete, srv.cfg.ActionToken.AccountDeleteTTL)
	if err != nil {
		return errors.Wrap(err, "failed to issue deletion token")
	}

	link := buildActionLink(srv.cfg.Mail.FrontendURL, confirmDeletionPath, plaintext)
	if err := srv.mailer.SendDeletionConfirmation(ctx, user.Email, user.Name, link); err != nil {
		srv.log(ctx).Warn("Failed to send deletion confirmation link", slog.Any("userID", userID), slog.Any("error", err))
	}

	srv.log(ctx).Info("Account deletion requested", slog.Any("userID", userID))

	return nil
}

// ConfirmDeletion redeems a deletion token and removes the account. Credential,
// session, and token rows cascade with the user row.
func (srv *accountService) ConfirmDeletion(ctx context.Context, input usecase.ConfirmDeletionInput) error {
	userID, err := srv.actionTokens.Redeem(ctx, input.Token, entity.PurposeAccountDelete)
	if err != nil {
		srv.log(ctx).Warn("Deletion token rejected", slog.Any("error", err))

		return errors.Wrap(err, "failed to redeem deletion token")
	}

	// Load the address first; the row is gone after the delete.
	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "failed to find user for deletion")
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := repoFactory.NewUserRepository().Delete(ctx, userID); err != nil {
			return errors.Wrap(err, "failed to delete user")
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Error("Failed to execute account deletion transaction", slog.Any("userID", userID), slog.Any("error", err))

		return errors.Wrap(err, "failed to execute account deletion transaction")
	}

	if err := srv.mailer.SendAccountDeletedNotice(ctx, user.Email, user.Name); err != nil {
		srv.log(ctx).Warn("Failed to send account deleted notice", slog.Any("userID", userID), slog.Any("error", err))
	}

	srv.log(ctx).Info("Account deleted", slog.Any("userID", userID))

	return nil
}
