// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"tally/internal/delivery/http/middleware"
	"tally/internal/delivery/http/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	AuthMiddleware *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	authMiddleware *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		authMiddleware: params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	authGroup := e.Group("/auth")
	{
		authGroup.POST("/signup", r.authHandler.SignUp)
		authGroup.POST("/signin", r.authHandler.SignIn)
		authGroup.POST("/csrf-token", r.authHandler.CSRFToken)

		// The refresh route path must match the refresh cookie path,
		// otherwise browsers never send the cookie back.
		authGroup.POST("/refresh", r.authHandler.Refresh, r.authMiddleware.RequireRefreshToken)

		authGroup.POST("/signout", r.authHandler.SignOut, r.authMiddleware.RequireAccessToken)
		authGroup.GET("/me", r.authHandler.Me, r.authMiddleware.RequireAccessToken)
	}
}
