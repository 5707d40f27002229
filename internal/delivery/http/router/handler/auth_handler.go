// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"gatekeeper/internal/delivery/http/response"
	"gatekeeper/internal/domain/entity"
	"gatekeeper/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AuthHandlerParams holds dependencies for AuthHandler, injected by Fx.
type AuthHandlerParams struct {
	fx.In

	AuthUC    usecase.AuthUsecase
	SessionUC usecase.SessionUsecase
	AccountUC usecase.AccountUsecase
	Logger    *slog.Logger
}

// AuthHandler holds dependencies for credential and session endpoints.
type AuthHandler struct {
	authUC    usecase.AuthUsecase
	sessionUC usecase.SessionUsecase
	accountUC usecase.AccountUsecase
	logger    *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler.
func NewAuthHandler(params AuthHandlerParams) *AuthHandler {
	return &AuthHandler{
		authUC:    params.AuthUC,
		sessionUC: params.SessionUC,
		accountUC: params.AccountUC,
		logger:    params.Logger,
	}
}

// RegisterRequest represents the request body for starting a signup
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifySignupRequest represents the request body for completing a signup
type VerifySignupRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

// LoginRequest represents the request body for a password login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the request body for rotating a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest represents the request body for ending a session
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// OAuthCallbackRequest represents the provider credential posted by the client
type OAuthCallbackRequest struct {
	Credential string `json:"credential" validate:"required"`
}

// ForgotPasswordRequest represents the request body for a password reset link
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents the request body for completing a password reset
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// UserResponse is the public projection of a user account
type UserResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

// LoginResponse carries the issued token pair and the account it belongs to
type LoginResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *UserResponse `json:"user"`
}

func newUserResponse(user *entity.User) *UserResponse {
	return &UserResponse{
		ID:         user.ID.String(),
		Email:      user.Email,
		Name:       user.Name,
		IsVerified: user.IsVerified,
		CreatedAt:  user.CreatedAt,
	}
}

func newLoginResponse(output *usecase.LoginOutput) *LoginResponse {
	return &LoginResponse{
		AccessToken:  output.AccessToken,
		RefreshToken: output.RefreshToken,
		User:         newUserResponse(output.User),
	}
}

// Register starts a signup: it stashes the pending enrollment and emails a
// one-time code. No account exists until the code is verified.
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid registration input")
	}
	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	output, err := h.authUC.Register(c.Request().Context(), usecase.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusAccepted, map[string]string{"email": output.Email})
}

// VerifySignup completes a signup with the emailed code and logs the new user in.
func (h *AuthHandler) VerifySignup(c echo.Context) error {
	var req VerifySignupRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid verification input")
	}
	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	output, err := h.authUC.VerifySignup(c.Request().Context(), usecase.VerifySignupInput{
		Email: req.Email,
		Code:  req.Code,
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusCreated, newLoginResponse(output))
}

// Login handles a password login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid login input")
	}
	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	output, err := h.authUC.Login(c.Request().Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, newLoginResponse(output))
}

// Refresh rotates a refresh token for a new token pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid refresh input")
	}
	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	output, err := h.sessionUC.Refresh(c.Request().Context(), usecase.RefreshInput{
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]string{
		"access_token":  output.AccessToken,
		"refresh_token": output.RefreshToken,
	})
}

// Logout ends the session named by the presented refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req LogoutRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid logout input")
	}
	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	if err := h.sessionUC.Logout(c.Request().Context(), usecase.LogoutInput{
		RefreshToken: req.RefreshToken,
	}); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

// GoogleCallback verifies a Google ID token and logs the asserted identity in.
func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	return h.federatedLogin(c, entity.ProviderGoogle)
}

// GitHubCallback verifies a GitHub access token and logs the asserted identity in.
func (h *AuthHandler) GitHubCallback(c echo.Context) error {
	return h.federatedLogin(c, entity.ProviderGitHub)
}

func (h *AuthHandler) federatedLogin(c echo.Context, provider entity.ProviderType) error {
	var req OAuthCallbackRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid OAuth callback input")
	}
	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	output, err := h.authUC.FederatedLogin(c.Request().Context(), usecase.FederatedLoginInput{
		Provider:   provider,
		Credential: req.Credential,
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, newLoginResponse(output))
}

// ForgotPassword requests a password reset link. The response is identical
// whether or not the address has an account.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid forgot password input")
	}
	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	if err := h.accountUC.ForgotPassword(c.Request().Context(), usecase.ForgotPasswordInput{
		Email: req.Email,
	}); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]string{
		"message": "If the address has an account, a reset link has been sent",
	})
}

// ResetPassword completes a password reset with the emailed token.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid reset password input")
	}
	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	if err := h.accountUC.ResetPassword(c.Request().Context(), usecase.ResetPasswordInput{
		Token:       req.Token,
		NewPassword: req.NewPassword,
	}); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Password has been reset"})
}

// HealthCheck is a simple handler to check if the service is up.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"})
}
