package middleware

import (
	"tally/internal/delivery/http/cookie"
	"tally/internal/domain/entity"
	domainerrors "tally/internal/domain/errors"
	"tally/internal/domain/service"
	"tally/internal/usecase"

	"github.com/labstack/echo/v4"
)

// Context keys set by the guards for downstream handlers.
const (
	ContextKeyUser     = "user"
	ContextKeyDeviceID = "deviceID"
)

// AuthMiddleware provides the cookie-based route guards. Each guard decodes
// the relevant token cookie, then delegates the session-backed checks to the
// auth usecase; failures surface through the error middleware as a uniform
// 401 without cause detail.
type AuthMiddleware struct {
	authUsecase  usecase.AuthUsecase
	tokenService service.TokenService
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(authUsecase usecase.AuthUsecase, tokenService service.TokenService) *AuthMiddleware {
	return &AuthMiddleware{authUsecase: authUsecase, tokenService: tokenService}
}

// RequireAccessToken guards routes behind a valid access token cookie and a
// live session for the requesting device.
func (m *AuthMiddleware) RequireAccessToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenString := cookie.ExtractTokenFromCookie(c, cookie.NameAccessToken)
		if tokenString == "" {
			return domainerrors.NewTokenValidationError("access",
				domainerrors.ErrAuthenticationFailed.WrapMessage("access token cookie missing"))
		}

		claims, err := m.tokenService.ValidateAccessToken(tokenString)
		if err != nil {
			return domainerrors.NewTokenValidationError("access", err)
		}

		deviceID := cookie.ExtractTokenFromCookie(c, cookie.NameDeviceID)

		user, err := m.authUsecase.ValidateAccessToken(c.Request().Context(), claims.UserID, deviceID)
		if err != nil {
			return err
		}

		c.Set(ContextKeyUser, user)
		c.Set(ContextKeyDeviceID, deviceID)

		return next(c)
	}
}

// RequireRefreshToken guards the refresh route. The full rotation-reuse check
// runs inside the usecase.
func (m *AuthMiddleware) RequireRefreshToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenString := cookie.ExtractTokenFromCookie(c, cookie.NameRefreshToken)
		if tokenString == "" {
			return domainerrors.NewTokenValidationError("refresh",
				domainerrors.ErrAuthenticationFailed.WrapMessage("refresh token cookie missing"))
		}

		claims, err := m.tokenService.ValidateRefreshToken(tokenString)
		if err != nil {
			return domainerrors.NewTokenValidationError("refresh", err)
		}

		deviceID := cookie.ExtractTokenFromCookie(c, cookie.NameDeviceID)

		user, err := m.authUsecase.ValidateRefreshToken(c.Request().Context(), claims.UserID, tokenString, deviceID)
		if err != nil {
			return err
		}

		c.Set(ContextKeyUser, user)
		c.Set(ContextKeyDeviceID, deviceID)

		return next(c)
	}
}

// UserFromContext returns the authenticated user a guard stored, or nil.
func UserFromContext(c echo.Context) *entity.User {
	user, _ := c.Get(ContextKeyUser).(*entity.User)

	return user
}

// DeviceIDFromContext returns the device id a guard stored, or "".
func DeviceIDFromContext(c echo.Context) string {
	deviceID, _ := c.Get(ContextKeyDeviceID).(string)

	return deviceID
}
