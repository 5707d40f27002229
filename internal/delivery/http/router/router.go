// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"gatekeeper/internal/delivery/http/middleware"
	"gatekeeper/internal/delivery/http/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	UserHandler    *handler.UserHandler
	AuthMiddleware *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	userHandler    *handler.UserHandler
	authMiddleware *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		userHandler:    params.UserHandler,
		authMiddleware: params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	// Credential and session routes. These authenticate by what is in the
	// request body (password, refresh token, emailed token), not by a
	// bearer access token.
	authGroup := e.Group("/auth")
	{
		authGroup.POST("/register", r.authHandler.Register)
		authGroup.POST("/register/verify", r.authHandler.VerifySignup)
		authGroup.POST("/login", r.authHandler.Login)
		authGroup.POST("/refresh", r.authHandler.Refresh)
		authGroup.POST("/logout", r.authHandler.Logout)
		authGroup.POST("/password/forgot", r.authHandler.ForgotPassword)
		authGroup.POST("/password/reset", r.authHandler.ResetPassword)
	}

	// OAuth routes - separate group for better organization
	oauthGroup := e.Group("/auth/oauth")
	{
		oauthGroup.POST("/google", r.authHandler.GoogleCallback)
		oauthGroup.POST("/github", r.authHandler.GitHubCallback)
	}

	// Self-service routes that require a valid access token
	userGroup := e.Group("/user")
	userGroup.Use(r.authMiddleware.Authenticate)
	{
		userGroup.GET("/me", r.userHandler.Me)
		userGroup.GET("/sessions", r.userHandler.GetSessions)
		userGroup.DELETE("/sessions", r.userHandler.LogoutAll)
		userGroup.DELETE("/sessions/:id", r.userHandler.RevokeSession)
		userGroup.POST("/email/verify/request", r.userHandler.RequestEmailVerification)
		userGroup.POST("/email/verify/confirm", r.userHandler.ConfirmEmailVerification)
		userGroup.POST("/delete/request", r.userHandler.RequestDeletion)
		userGroup.POST("/delete/confirm", r.userHandler.ConfirmDeletion)
	}
}
