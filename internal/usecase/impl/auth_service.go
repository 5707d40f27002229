// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"gatekeeper/config"
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

const enrollKeyPrefix = "enroll:"

// Frontend paths the mailed links point at.
const (
	verifyEmailPath     = "verify-email"
	resetPasswordPath   = "reset-password"
	confirmDeletionPath = "confirm-deletion"
)

// authService implements the AuthUsecase interface.
type authService struct {
	txManager         repository.TransactionManager
	userRepo          repository.UserRepository
	authRepo          repository.AuthRepository
	refreshTokenRepo  repository.RefreshTokenRepository
	enrollStore       repository.EphemeralStore
	hasher            service.PasswordHasher
	passwordValidator service.PasswordValidator
	tokenService      service.TokenService
	otpService        service.OTPService
	actionTokens      service.ActionTokenService
	mailer            service.Mailer
	oauthServices     map[entity.ProviderType]service.OAuthAuthService
	clock             service.Clock
	cfg               *config.Config
	logger            *slog.Logger
}

// AuthServiceParams holds dependencies for authService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager         repository.TransactionManager
	UserRepo          repository.UserRepository
	AuthRepo          repository.AuthRepository
	RefreshTokenRepo  repository.RefreshTokenRepository
	EnrollStore       repository.EphemeralStore
	Hasher            service.PasswordHasher
	PasswordValidator service.PasswordValidator
	TokenService      service.TokenService
	OTPService        service.OTPService
	ActionTokens      service.ActionTokenService
	Mailer            service.Mailer
	OAuthServices     []service.OAuthAuthService `group:"oauth"`
	Clock             service.Clock
	Config            *config.Config
	Logger            *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all dependencies as interfaces.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	oauthServices := make(map[entity.ProviderType]service.OAuthAuthService, len(params.OAuthServices))
	for _, svc := range params.OAuthServices {
		oauthServices[svc.GetProvider()] = svc
	}

	return &authService{
		txManager:         params.TxManager,
		userRepo:          params.UserRepo,
		authRepo:          params.AuthRepo,
		refreshTokenRepo:  params.RefreshTokenRepo,
		enrollStore:       params.EnrollStore,
		hasher:            params.Hasher,
		passwordValidator: params.PasswordValidator,
		tokenService:      params.TokenService,
		otpService:        params.OTPService,
		actionTokens:      params.ActionTokens,
		mailer:            params.Mailer,
		oauthServices:     oauthServices,
		clock:             params.Clock,
		cfg:               params.Config,
		logger:            params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Register stages a pending enrollment in the ephemeral store and mails a
// one-time code. Nothing durable exists until the code checks out.
func (srv *authService) Register(ctx context.Context, input usecase.RegisterInput) (*usecase.RegisterOutput, error) {
	email := normalizeEmail(input.Email)
	srv.log(ctx).Info("Starting registration", slog.String("email", email))

	if err := srv.passwordValidator.Validate(input.Password); err != nil {
		srv.log(ctx).Warn("Password validation failed during registration", slog.String("email", email))

		return nil, errors.Wrap(err, "password does not meet security requirements")
	}

	if _, err := srv.userRepo.FindByEmail(ctx, email); err == nil {
		srv.log(ctx).Warn("Registration for an already registered email", slog.String("email", email))

		return nil, errors.Wrap(domainerrors.ErrUserAlreadyExists, "email already registered")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, errors.Wrap(err, "failed to check for existing user")
	}

	hashedPassword, err := srv.hasher.Hash(input.Password)
	if err != nil {
		srv.log(ctx).Error("Failed to hash password during registration", slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to hash password during registration")
	}

	enrollment := entity.PendingEnrollment{
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: hashedPassword,
		CreatedAt:    srv.clock.Now(),
	}
	payload, err := json.Marshal(enrollment)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode pending enrollment")
	}

	if err := srv.enrollStore.Set(ctx, enrollKey(email), payload, srv.cfg.OTP.TTL); err != nil {
		return nil, errors.Wrap(err, "failed to stage pending enrollment")
	}

	code, err := srv.otpService.Generate(ctx, email)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate signup code")
	}

	if err := srv.mailer.SendOTP(ctx, email, enrollment.Name, code); err != nil {
		// The enrollment is staged; the user can re-register to get a new code.
		srv.log(ctx).Warn("Failed to send signup code", slog.String("email", email), slog.Any("error", err))
	}

	srv.log(ctx).Debug("Registration staged", slog.String("email", email))

	return &usecase.RegisterOutput{Email: email}, nil
}

// VerifySignup consumes the pending enrollment exactly once, promotes it into
// a verified user with a local credential, and logs the user in.
func (srv *authService) VerifySignup(ctx context.Context, input usecase.VerifySignupInput) (*usecase.LoginOutput, error) {
	email := normalizeEmail(input.Email)
	srv.log(ctx).Info("Verifying signup", slog.String("email", email))

	ok, err := srv.otpService.Verify(ctx, email, input.Code)
	if err != nil {
		return nil, errors.Wrap(err, "failed to verify signup code")
	}
	if !ok {
		srv.log(ctx).Warn("Signup verification with bad code", slog.String("email", email))

		return nil, errors.Wrap(domainerrors.ErrOTPInvalid, "signup verification failed")
	}

	// Take is the once-only fence: of two concurrent verifications with a
	// valid code, only one gets the enrollment back.
	payload, found, err := srv.enrollStore.Take(ctx, enrollKey(email))
	if err != nil {
		return nil, errors.Wrap(err, "failed to consume pending enrollment")
	}
	if !found {
		srv.log(ctx).Warn("Signup verification without a pending enrollment", slog.String("email", email))

		return nil, errors.Wrap(domainerrors.ErrOTPInvalid, "signup verification failed")
	}

	var enrollment entity.PendingEnrollment
	if err := json.Unmarshal(payload, &enrollment); err != nil {
		return nil, errors.Wrap(err, "failed to decode pending enrollment")
	}

	var output *usecase.LoginOutput
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()
		authRepo := repoFactory.NewAuthRepository()

		newUser := &entity.User{
			Name:       enrollment.Name,
			Email:      email,
			IsVerified: true,
		}
		if err := userRepo.Create(ctx, newUser); err != nil {
			return errors.Wrap(err, "failed to create user during signup verification")
		}

		newAuth := &entity.Authentication{
			UserID:         newUser.ID,
			Provider:       entity.ProviderLocal,
			ProviderUserID: email,
			PasswordHash:   enrollment.PasswordHash,
		}
		if err := authRepo.CreateAuthentication(ctx, newAuth); err != nil {
			return errors.Wrap(err, "failed to create local credential during signup verification")
		}

		loginOutput, err := srv.openSessionInTx(ctx, repoFactory, newUser)
		if err != nil {
			return err
		}
		output = loginOutput

		return nil
	})
	if err != nil {
		srv.log(ctx).Error("Failed to execute signup verification transaction", slog.String("email", email), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute signup verification transaction")
	}

	srv.log(ctx).Debug("Signup verified", slog.Any("userID", output.User.ID))

	return output, nil
}

// Login checks a local credential and issues a token pair.
func (srv *authService) Login(ctx context.Context, input usecase.LoginInput) (*usecase.LoginOutput, error) {
	email := normalizeEmail(input.Email)
	srv.log(ctx).Debug("Starting user login", slog.String("email", email))

	authRecord, err := srv.authRepo.FindAuthentication(ctx, entity.ProviderLocal, email)
	if err != nil {
		srv.log(ctx).Warn("Login failed", slog.String("email", email), slog.Any("error", err))

		if errors.Is(err, repository.ErrAuthNotFound) {
			return nil, errors.Wrap(domainerrors.ErrInvalidCredentials, "login failed")
		}

		return nil, errors.Wrap(err, "failed to find authentication")
	}

	// Check password outside any transaction (argon2 is CPU-bound).
	if !srv.hasher.Check(input.Password, authRecord.PasswordHash) {
		srv.log(ctx).Warn("Login failed", slog.String("email", email), slog.Any("error", domainerrors.ErrInvalidCredentials))

		return nil, errors.Wrap(domainerrors.ErrInvalidCredentials, "login failed")
	}

	loggedInUser, err := srv.userRepo.FindByID(ctx, authRecord.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user by id")
	}

	if !loggedInUser.IsVerified {
		srv.log(ctx).Warn("Login on unverified account", slog.Any("userID", loggedInUser.ID))

		return nil, errors.Wrap(domainerrors.ErrAccountUnverified, "login failed")
	}

	output, err := srv.openSession(ctx, loggedInUser)
	if err != nil {
		srv.log(ctx).Warn("Login failed", slog.String("email", email), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Debug("User logged in successfully", slog.Any("userID", loggedInUser.ID))

	return output, nil
}

// FederatedLogin verifies a provider credential, upserts the matching user,
// and issues a token pair. The same provider identity always resolves to the
// same user.
func (srv *authService) FederatedLogin(ctx context.Context, input usecase.FederatedLoginInput) (*usecase.LoginOutput, error) {
	srv.log(ctx).Info("Handling federated login", slog.String("provider", input.Provider.String()))

	oauthService, ok := srv.oauthServices[input.Provider]
	if !ok {
		return nil, errors.Wrap(domainerrors.ErrValidationFailed, "unsupported oauth provider")
	}

	oauthUser, err := oauthService.VerifyIDToken(ctx, input.Credential)
	if err != nil {
		srv.log(ctx).Warn("Federated credential rejected", slog.String("provider", input.Provider.String()), slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrOAuthTokenInvalid, "failed to verify provider credential")
	}

	var output *usecase.LoginOutput
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		user, err := srv.findOrCreateFederatedUser(ctx, repoFactory, oauthUser)
		if err != nil {
			return err
		}

		loginOutput, err := srv.openSessionInTx(ctx, repoFactory, user)
		if err != nil {
			return err
		}
		output = loginOutput

		return nil
	})
	if err != nil {
		srv.log(ctx).Error("Failed to execute federated login transaction", slog.String("provider", input.Provider.String()), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute federated login transaction")
	}

	srv.log(ctx).Debug("Federated login completed", slog.Any("userID", output.User.ID))

	return output, nil
}

// findOrCreateFederatedUser resolves the provider identity to a user,
// attaching to an existing account by email only when the provider vouches
// for the address.
func (srv *authService) findOrCreateFederatedUser(ctx context.Context, repoFactory repository.RepositoryFactory, oauthUser *service.OAuthUser) (*entity.User, error) {
	userRepo := repoFactory.NewUserRepository()
	authRepo := repoFactory.NewAuthRepository()

	authRecord, err := authRepo.FindAuthentication(ctx, oauthUser.Provider, oauthUser.ID)
	if err == nil {
		user, err := userRepo.FindByID(ctx, authRecord.UserID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to find user for federated identity")
		}

		return user, nil
	}
	if !errors.Is(err, repository.ErrAuthNotFound) {
		return nil, errors.Wrap(err, "failed to find federated authentication")
	}

	email := normalizeEmail(oauthUser.Email)

	existing, err := userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		// Attaching to an existing account hands its sessions to the
		// provider identity, so it is gated on the provider asserting
		// ownership of the address.
		if !oauthUser.EmailVerified {
			srv.log(ctx).Warn("Refusing email merge for unverified provider email", slog.String("provider", oauthUser.Provider.String()))

			return nil, errors.Wrap(domainerrors.ErrOAuthTokenInvalid, "provider email not verified")
		}

		if !existing.IsVerified {
			existing.IsVerified = true
			if err := userRepo.Update(ctx, existing); err != nil {
				return nil, errors.Wrap(err, "failed to mark merged user verified")
			}
		}

		if err := srv.attachFederatedAuth(ctx, authRepo, existing.ID, oauthUser); err != nil {
			return nil, err
		}

		return existing, nil

	case errors.Is(err, repository.ErrUserNotFound):
		srv.log(ctx).Info("Federated identity unknown, creating new user", slog.String("provider", oauthUser.Provider.String()))

		newUser := &entity.User{
			Name:       oauthUser.Name,
			Email:      email,
			IsVerified: oauthUser.EmailVerified,
		}
		if err := userRepo.Create(ctx, newUser); err != nil {
			return nil, errors.Wrap(err, "failed to create user for federated login")
		}

		if err := srv.attachFederatedAuth(ctx, authRepo, newUser.ID, oauthUser); err != nil {
			return nil, err
		}

		return newUser, nil

	default:
		return nil, errors.Wrap(err, "failed to look up user by provider email")
	}
}

func (srv *authService) attachFederatedAuth(ctx context.Context, authRepo repository.AuthRepository, userID uuid.UUID, oauthUser *service.OAuthUser) error {
	newAuth := &entity.Authentication{
		UserID:         userID,
		Provider:       oauthUser.Provider,
		ProviderUserID: oauthUser.ID,
	}
	if err := authRepo.CreateAuthentication(ctx, newAuth); err != nil {
		return errors.Wrap(err, "failed to create federated authentication")
	}

	return nil
}

// RequestEmailVerification mails a fresh ownership-confirmation link,
// replacing any earlier outstanding one.
func (srv *authService) RequestEmailVerification(ctx context.Context, userID uuid.UUID) error {
	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "failed to find user for email verification")
	}

	if user.IsVerified {
		srv.log(ctx).Debug("Email verification requested on a verified account", slog.Any("userID", userID))

		return nil
	}

	plaintext, err := srv.actionTokens.Issue(ctx, user.ID, entity.PurposeEmailVerify, srv.cfg.ActionToken.EmailVerifyTTL)
	if err != nil {
		return errors.Wrap(err, "failed to issue email verification token")
	}

	link := buildActionLink(srv.cfg.Mail.FrontendURL, verifyEmailPath, plaintext)
	if err := srv.mailer.SendEmailVerificationLink(ctx, user.Email, user.Name, link); err != nil {
		srv.log(ctx).Warn("Failed to send email verification link", slog.Any("userID", userID), slog.Any("error", err))
	}

	return nil
}

// ConfirmEmailVerification redeems a verification token and marks the account verified.
func (srv *authService) ConfirmEmailVerification(ctx context.Context, input usecase.ConfirmEmailInput) error {
	userID, err := srv.actionTokens.Redeem(ctx, input.Token, entity.PurposeEmailVerify)
	if err != nil {
		srv.log(ctx).Warn("Email verification token rejected", slog.Any("error", err))

		return errors.Wrap(err, "failed to redeem email verification token")
	}

	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "failed to find user for email verification")
	}

	if user.IsVerified {
		return nil
	}

	user.IsVerified = true
	if err := srv.userRepo.Update(ctx, user); err != nil {
		return errors.Wrap(err, "failed to mark user verified")
	}

	srv.log(ctx).Info("Email verified", slog.Any("userID", userID))

	return nil
}

// openSession issues a token pair for the user and persists the refresh hash,
// wrapping the session-limit check in its own transaction when a limit is set.
func (srv *authService) openSession(ctx context.Context, user *entity.User) (*usecase.LoginOutput, error) {
	accessToken, refreshTokenString, err := srv.tokenService.GenerateTokens(user)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate tokens")
	}

	if srv.maxActiveSessions() > 0 {
		// Keep lock, count, and insert in one short transaction.
		if err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
			return srv.storeRefreshToken(ctx, repoFactory, user.ID, refreshTokenString)
		}); err != nil {
			return nil, errors.Wrap(err, "failed to store refresh token")
		}
	} else if err := srv.persistRefreshToken(ctx, srv.refreshTokenRepo, user.ID, refreshTokenString); err != nil {
		return nil, errors.Wrap(err, "failed to store refresh token")
	}

	return &usecase.LoginOutput{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenString,
		User:         user,
	}, nil
}

// openSessionInTx is openSession for callers already inside a transaction.
func (srv *authService) openSessionInTx(ctx context.Context, repoFactory repository.RepositoryFactory, user *entity.User) (*usecase.LoginOutput, error) {
	accessToken, refreshTokenString, err := srv.tokenService.GenerateTokens(user)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate tokens")
	}

	if err := srv.storeRefreshToken(ctx, repoFactory, user.ID, refreshTokenString); err != nil {
		return nil, err
	}

	return &usecase.LoginOutput{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenString,
		User:         user,
	}, nil
}

// storeRefreshToken persists the refresh hash, enforcing the active-session
// limit under the user's row lock.
func (srv *authService) storeRefreshToken(ctx context.Context, repoFactory repository.RepositoryFactory, userID uuid.UUID, refreshTokenString string) error {
	refreshRepo := repoFactory.NewRefreshTokenRepository()

	if limit := srv.maxActiveSessions(); limit > 0 {
		if err := repoFactory.NewUserRepository().AcquireSessionMutex(ctx, userID); err != nil {
			return errors.Wrap(err, "failed to lock user row for session limit check")
		}

		activeSessions, err := refreshRepo.CountActiveSessionsByUserID(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "failed to count active sessions")
		}
		if activeSessions >= limit {
			return errors.Wrap(domainerrors.ErrSessionLimitExceeded, "active session limit exceeded")
		}
	}

	return srv.persistRefreshToken(ctx, refreshRepo, userID, refreshTokenString)
}

func (srv *authService) persistRefreshToken(ctx context.Context, refreshRepo repository.RefreshTokenRepository, userID uuid.UUID, refreshTokenString string) error {
	newRefreshToken := &entity.RefreshToken{
		UserID:    userID,
		TokenHash: srv.tokenService.HashToken(refreshTokenString),
		ExpiresAt: srv.clock.Now().Add(srv.tokenService.GetRefreshTokenDuration()),
	}

	if err := refreshRepo.CreateRefreshToken(ctx, newRefreshToken); err != nil {
		return errors.Wrap(err, "failed to store refresh token")
	}

	return nil
}

func (srv *authService) maxActiveSessions() int {
	if srv.cfg != nil && srv.cfg.Auth != nil {
		return srv.cfg.Auth.MaxActiveSessions
	}

	return 0
}

// --- Package helpers shared by the auth, session, and account services ---

// normalizeEmail canonicalizes an address for lookups and storage.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// enrollKey is the ephemeral-store key holding a pending enrollment.
func enrollKey(email string) string {
	return enrollKeyPrefix + email
}

// buildActionLink assembles the frontend URL a mailed token is embedded in.
func buildActionLink(frontendURL, path, token string) string {
	return fmt.Sprintf("%s/%s?token=%s", strings.TrimRight(frontendURL, "/"), path, url.QueryEscape(token))
}
