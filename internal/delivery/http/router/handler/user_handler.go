package handler

import (
	"log/slog"
	"net/http"
	"time"

	"gatekeeper/internal/delivery/http/middleware"
	"gatekeeper/internal/delivery/http/response"
	"gatekeeper/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// UserHandlerParams holds dependencies for UserHandler, injected by Fx.
type UserHandlerParams struct {
	fx.In

	AuthUC    usecase.AuthUsecase
	SessionUC usecase.SessionUsecase
	AccountUC usecase.AccountUsecase
	Logger    *slog.Logger
}

// UserHandler holds dependencies for authenticated self-service endpoints.
type UserHandler struct {
	authUC    usecase.AuthUsecase
	sessionUC usecase.SessionUsecase
	accountUC usecase.AccountUsecase
	logger    *slog.Logger
}

// NewUserHandler is the constructor for UserHandler.
func NewUserHandler(params UserHandlerParams) *UserHandler {
	return &UserHandler{
		authUC:    params.AuthUC,
		sessionUC: params.SessionUC,
		accountUC: params.AccountUC,
		logger:    params.Logger,
	}
}

// SessionResponse is the public projection of an active session
type SessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConfirmEmailRequest represents the request body for confirming email ownership
type ConfirmEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// ConfirmDeletionRequest represents the request body for confirming account deletion
type ConfirmDeletionRequest struct {
	Token string `json:"token" validate:"required"`
}

// Me returns the authenticated caller's profile.
func (h *UserHandler) Me(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Invalid user ID in token")
	}

	user, err := h.accountUC.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, newUserResponse(user))
}

// GetSessions lists the caller's active sessions.
func (h *UserHandler) GetSessions(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Invalid user ID in token")
	}

	sessions, err := h.sessionUC.GetActiveSessions(c.Request().Context(), userID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	result := make([]SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		result = append(result, SessionResponse{
			ID:        session.ID.String(),
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
		})
	}

	return response.Success(c, http.StatusOK, result)
}

// LogoutAll ends every session of the caller.
func (h *UserHandler) LogoutAll(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Invalid user ID in token")
	}

	if err := h.sessionUC.LogoutAll(c.Request().Context(), userID); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "All sessions terminated"})
}

// RevokeSession ends a single session by its ID. Only the caller's own
// sessions are visible to this endpoint.
func (h *UserHandler) RevokeSession(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Invalid user ID in token")
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid session ID")
	}

	if err := h.sessionUC.RevokeSession(c.Request().Context(), userID, sessionID); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Session terminated"})
}

// RequestEmailVerification emails the caller a fresh verification link.
func (h *UserHandler) RequestEmailVerification(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Invalid user ID in token")
	}

	if err := h.authUC.RequestEmailVerification(c.Request().Context(), userID); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Verification email sent"})
}

// ConfirmEmailVerification marks the caller's address verified using the emailed token.
func (h *UserHandler) ConfirmEmailVerification(c echo.Context) error {
	var req ConfirmEmailRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid confirmation input")
	}
	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	if err := h.authUC.ConfirmEmailVerification(c.Request().Context(), usecase.ConfirmEmailInput{
		Token: req.Token,
	}); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Email address verified"})
}

// RequestDeletion emails the caller a deletion confirmation link.
func (h *UserHandler) RequestDeletion(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Invalid user ID in token")
	}

	if err := h.accountUC.RequestDeletion(c.Request().Context(), userID); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Deletion confirmation email sent"})
}

// ConfirmDeletion permanently removes the caller's account using the emailed token.
func (h *UserHandler) ConfirmDeletion(c echo.Context) error {
	var req ConfirmDeletionRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid confirmation input")
	}
	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	if err := h.accountUC.ConfirmDeletion(c.Request().Context(), usecase.ConfirmDeletionInput{
		Token: req.Token,
	}); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Account deleted"})
}
