// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"tally/internal/delivery/http/cookie"
	"tally/internal/delivery/http/middleware"
	"tally/internal/delivery/http/response"
	"tally/internal/domain/entity"
	"tally/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// AuthHandler holds dependencies for the authentication endpoints.
type AuthHandler struct {
	uc      usecase.AuthUsecase
	cookies *cookie.Manager
	logger  *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler, injected by Fx.
func NewAuthHandler(uc usecase.AuthUsecase, cookies *cookie.Manager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		uc:      uc,
		cookies: cookies,
		logger:  logger,
	}
}

type signUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// userResponse is the client-facing projection of a user.
type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(user *entity.User) *userResponse {
	return &userResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	}
}

// SignUp handles account registration and signs the new account in.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid signup input")
	}
	if err := c.Validate(&req); err != nil {
		return errors.WithStack(err)
	}

	deviceID, err := h.cookies.GetOrCreateDeviceID(c)
	if err != nil {
		return errors.WithStack(err)
	}

	output, err := h.uc.SignUp(c.Request().Context(), &usecase.SignUpInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		DeviceID: deviceID,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	h.cookies.SetAuthCookies(c, output.AccessToken, output.RefreshToken)

	return response.Success(c, http.StatusCreated, toUserResponse(output.User), "Signup successful")
}

// SignIn handles credential login for an existing account.
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid signin input")
	}
	if err := c.Validate(&req); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.uc.ValidateCredentials(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return errors.WithStack(err)
	}

	deviceID, err := h.cookies.GetOrCreateDeviceID(c)
	if err != nil {
		return errors.WithStack(err)
	}

	output, err := h.uc.SignIn(c.Request().Context(), &usecase.SignInInput{
		User:     user,
		DeviceID: deviceID,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	h.cookies.SetAuthCookies(c, output.AccessToken, output.RefreshToken)

	return response.Success(c, http.StatusOK, toUserResponse(output.User), "Signin successful")
}

// SignOut deletes the device session and clears the auth cookies. Runs
// behind the access token guard.
func (h *AuthHandler) SignOut(c echo.Context) error {
	user := middleware.UserFromContext(c)
	if user == nil {
		return response.Unauthorized(c, "AUTHENTICATION_FAILED", "Authentication failed")
	}

	if err := h.uc.SignOut(c.Request().Context(), user.ID, middleware.DeviceIDFromContext(c)); err != nil {
		return errors.WithStack(err)
	}

	h.cookies.ClearAuthCookies(c)

	return response.Success(c, http.StatusOK, nil, "Signout successful")
}

// Refresh re-signs the access token. Runs behind the refresh token guard,
// which has already proved identity and rotation state.
func (h *AuthHandler) Refresh(c echo.Context) error {
	user := middleware.UserFromContext(c)
	if user == nil {
		return response.Unauthorized(c, "AUTHENTICATION_FAILED", "Authentication failed")
	}

	output, err := h.uc.RenewAccessToken(c.Request().Context(), user)
	if err != nil {
		return errors.WithStack(err)
	}

	h.cookies.SetAccessCookie(c, output.AccessToken)

	return response.Success(c, http.StatusOK, toUserResponse(output.User), "Token refreshed")
}

// Me echoes the authenticated identity. Runs behind the access token guard.
func (h *AuthHandler) Me(c echo.Context) error {
	user := middleware.UserFromContext(c)
	if user == nil {
		return response.Unauthorized(c, "AUTHENTICATION_FAILED", "Authentication failed")
	}

	return response.Success(c, http.StatusOK, toUserResponse(user), "Authenticated")
}

// CSRFToken issues a CSRF token and makes sure the caller has a device id.
func (h *AuthHandler) CSRFToken(c echo.Context) error {
	deviceID, err := h.cookies.GetOrCreateDeviceID(c)
	if err != nil {
		return errors.WithStack(err)
	}

	token, err := h.cookies.IssueCSRFToken(c)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]string{
		"csrfToken": token,
		"deviceId":  deviceID,
	}, "CSRF token issued")
}

// HealthCheck is a simple handler to check if the service is up.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"}, "Service is healthy")
}
