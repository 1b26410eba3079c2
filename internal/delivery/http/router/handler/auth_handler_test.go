package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tally/config"
	"tally/internal/delivery/http/cookie"
	"tally/internal/delivery/http/middleware"
	"tally/internal/delivery/http/response"
	"tally/internal/delivery/http/validator"
	"tally/internal/domain/entity"
	domainerrors "tally/internal/domain/errors"
	"tally/internal/domain/service"
	"tally/internal/infra/auth"
	"tally/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAuthUsecase scripts the usecase layer so handler tests exercise
// binding, cookies and status mapping. It signs real tokens so the route
// guards can validate what the handlers set, and remembers signout so the
// post-signout 401 path is observable.
type stubAuthUsecase struct {
	user   *entity.User
	tokens service.TokenService

	signUpErr      error
	credentialsErr error
	signInErr      error
	signOutCalls   int
	signedOut      bool

	accessValidationErr  error
	refreshValidationErr error
}

func (s *stubAuthUsecase) issue(user *entity.User) (*usecase.AuthOutput, error) {
	pair, err := s.tokens.GenerateTokenPair(user.ID)
	if err != nil {
		return nil, err
	}

	return &usecase.AuthOutput{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, User: user}, nil
}

func (s *stubAuthUsecase) SignUp(ctx context.Context, input *usecase.SignUpInput) (*usecase.AuthOutput, error) {
	if s.signUpErr != nil {
		return nil, s.signUpErr
	}

	return s.issue(s.user)
}

func (s *stubAuthUsecase) ValidateCredentials(ctx context.Context, email, password string) (*entity.User, error) {
	if s.credentialsErr != nil {
		return nil, s.credentialsErr
	}

	return s.user, nil
}

func (s *stubAuthUsecase) SignIn(ctx context.Context, input *usecase.SignInInput) (*usecase.AuthOutput, error) {
	if s.signInErr != nil {
		return nil, s.signInErr
	}

	return s.issue(input.User)
}

func (s *stubAuthUsecase) SignOut(ctx context.Context, userID uuid.UUID, deviceID string) error {
	s.signOutCalls++
	s.signedOut = true

	return nil
}

func (s *stubAuthUsecase) ValidateDeviceID(deviceID string) error {
	if _, err := uuid.Parse(deviceID); err != nil {
		return domainerrors.ErrInvalidDeviceID
	}

	return nil
}

func (s *stubAuthUsecase) ValidateAccessToken(ctx context.Context, userID uuid.UUID, deviceID string) (*entity.User, error) {
	if s.accessValidationErr != nil {
		return nil, s.accessValidationErr
	}
	if s.signedOut {
		return nil, domainerrors.NewTokenValidationError("access",
			domainerrors.ErrSessionNotFound.WrapMessage("no live session for device"))
	}

	return s.user, nil
}

func (s *stubAuthUsecase) ValidateRefreshToken(ctx context.Context, userID uuid.UUID, refreshToken, deviceID string) (*entity.User, error) {
	if s.refreshValidationErr != nil {
		return nil, s.refreshValidationErr
	}

	return s.user, nil
}

func (s *stubAuthUsecase) RenewAccessToken(ctx context.Context, user *entity.User) (*usecase.RenewOutput, error) {
	return &usecase.RenewOutput{AccessToken: "renewed-access", User: user}, nil
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Env.Env = "local"
	cfg.SecretKey.Access = "unit-test-access-secret"
	cfg.SecretKey.Refresh = "unit-test-refresh-secret"
	cfg.SecretKey.CSRF = "unit-test-csrf-secret"
	cfg.Auth = config.DefaultAuthConfig()

	return cfg
}

type testServer struct {
	echo         *echo.Echo
	uc           *stubAuthUsecase
	tokenService service.TokenService
	user         *entity.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := newTestConfig()
	tokenService, err := auth.NewJWTService(cfg)
	require.NoError(t, err)

	user := &entity.User{
		ID:        uuid.New(),
		Email:     "alice@example.com",
		Name:      "Alice",
		CreatedAt: time.Now(),
	}
	uc := &stubAuthUsecase{user: user, tokens: tokenService}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	e := echo.New()
	e.Validator = validator.New()
	e.HTTPErrorHandler = middleware.NewErrorMiddleware(logger).HandleHTTPError

	cookies := cookie.NewManager(cfg, tokenService)
	authHandler := NewAuthHandler(uc, cookies, logger)
	authMiddleware := middleware.NewAuthMiddleware(uc, tokenService)

	e.GET("/health", HealthCheck)
	authGroup := e.Group("/auth")
	authGroup.POST("/signup", authHandler.SignUp)
	authGroup.POST("/signin", authHandler.SignIn)
	authGroup.POST("/csrf-token", authHandler.CSRFToken)
	authGroup.POST("/refresh", authHandler.Refresh, authMiddleware.RequireRefreshToken)
	authGroup.POST("/signout", authHandler.SignOut, authMiddleware.RequireAccessToken)
	authGroup.GET("/me", authHandler.Me, authMiddleware.RequireAccessToken)

	return &testServer{echo: e, uc: uc, tokenService: tokenService, user: user}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()

	var body response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body
}

func jsonRequest(method, path, payload string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	return req
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}

	return nil
}

func TestAuthHandler_SignUp(t *testing.T) {
	server := newTestServer(t)

	rec := server.do(jsonRequest(http.MethodPost, "/auth/signup",
		`{"email":"alice@example.com","name":"Alice","password":"long enough password"}`))

	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeResponse(t, rec)
	assert.True(t, body.Success)

	assert.NotNil(t, responseCookie(rec, cookie.NameAccessToken))
	assert.NotNil(t, responseCookie(rec, cookie.NameRefreshToken))
	assert.NotNil(t, responseCookie(rec, cookie.NameDeviceID), "signup must leave the browser with a device id")
}

func TestAuthHandler_SignUp_InvalidPayload(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name    string
		payload string
	}{
		{name: "missing email", payload: `{"name":"Alice","password":"long enough password"}`},
		{name: "malformed email", payload: `{"email":"nope","name":"Alice","password":"long enough password"}`},
		{name: "short password", payload: `{"email":"alice@example.com","name":"Alice","password":"short"}`},
		{name: "not json", payload: `plainly not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := server.do(jsonRequest(http.MethodPost, "/auth/signup", tt.payload))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAuthHandler_SignUp_DuplicateEmail(t *testing.T) {
	server := newTestServer(t)
	server.uc.signUpErr = domainerrors.ErrUserAlreadyExists.WrapMessage("email already registered")

	rec := server.do(jsonRequest(http.MethodPost, "/auth/signup",
		`{"email":"alice@example.com","name":"Alice","password":"long enough password"}`))

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeResponse(t, rec)
	require.NotNil(t, body.Error)
	assert.Equal(t, "USER_ALREADY_EXISTS", body.Error.Code)
}

func TestAuthHandler_SignIn(t *testing.T) {
	server := newTestServer(t)

	rec := server.do(jsonRequest(http.MethodPost, "/auth/signin",
		`{"email":"alice@example.com","password":"long enough password"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, responseCookie(rec, cookie.NameAccessToken))

	refresh := responseCookie(rec, cookie.NameRefreshToken)
	require.NotNil(t, refresh)
	assert.Equal(t, "/auth/refresh", refresh.Path)
}

func TestAuthHandler_SignIn_BadCredentials(t *testing.T) {
	server := newTestServer(t)
	server.uc.credentialsErr = domainerrors.ErrAuthenticationFailed.WrapMessage("unknown email")

	rec := server.do(jsonRequest(http.MethodPost, "/auth/signin",
		`{"email":"alice@example.com","password":"wrong password"}`))

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeResponse(t, rec)
	assert.Equal(t, "Authentication failed", body.Message, "the client must never learn which part was wrong")
	require.NotNil(t, body.Error)
	assert.Equal(t, "AUTHENTICATION_FAILED", body.Error.Code)
	assert.Empty(t, body.Error.Details)
}

func TestAuthHandler_Me(t *testing.T) {
	server := newTestServer(t)

	pair, err := server.tokenService.GenerateTokenPair(server.user.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: cookie.NameAccessToken, Value: pair.AccessToken})
	req.AddCookie(&http.Cookie{Name: cookie.NameDeviceID, Value: uuid.NewString()})

	rec := server.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeResponse(t, rec)
	assert.True(t, body.Success)
}

func TestAuthHandler_Me_Unauthenticated(t *testing.T) {
	server := newTestServer(t)

	t.Run("no cookie", func(t *testing.T) {
		rec := server.do(httptest.NewRequest(http.MethodGet, "/auth/me", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeResponse(t, rec)
		assert.Equal(t, "Authentication failed", body.Message)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: cookie.NameAccessToken, Value: "not-a-jwt"})

		rec := server.do(req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeResponse(t, rec)
		assert.Equal(t, "Authentication failed", body.Message)
	})

	t.Run("no live session", func(t *testing.T) {
		server.uc.accessValidationErr = domainerrors.NewTokenValidationError("access",
			domainerrors.ErrSessionNotFound.WrapMessage("no live session for device"))
		defer func() { server.uc.accessValidationErr = nil }()

		pair, err := server.tokenService.GenerateTokenPair(server.user.ID)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: cookie.NameAccessToken, Value: pair.AccessToken})
		req.AddCookie(&http.Cookie{Name: cookie.NameDeviceID, Value: uuid.NewString()})

		rec := server.do(req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeResponse(t, rec)
		assert.Equal(t, "Authentication failed", body.Message)
	})
}

func TestAuthHandler_SignOut(t *testing.T) {
	server := newTestServer(t)

	pair, err := server.tokenService.GenerateTokenPair(server.user.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/signout", nil)
	req.AddCookie(&http.Cookie{Name: cookie.NameAccessToken, Value: pair.AccessToken})
	req.AddCookie(&http.Cookie{Name: cookie.NameDeviceID, Value: uuid.NewString()})

	rec := server.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, server.uc.signOutCalls)

	cleared := responseCookie(rec, cookie.NameAccessToken)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge, "signout must clear the auth cookies")
}

func TestAuthHandler_Refresh(t *testing.T) {
	server := newTestServer(t)

	pair, err := server.tokenService.GenerateTokenPair(server.user.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: cookie.NameRefreshToken, Value: pair.RefreshToken})
	req.AddCookie(&http.Cookie{Name: cookie.NameDeviceID, Value: uuid.NewString()})

	rec := server.do(req)

	require.Equal(t, http.StatusOK, rec.Code)

	access := responseCookie(rec, cookie.NameAccessToken)
	require.NotNil(t, access)
	assert.Equal(t, "renewed-access", access.Value)
	assert.Nil(t, responseCookie(rec, cookie.NameRefreshToken), "refresh must not reissue the refresh cookie")
}

func TestAuthHandler_Refresh_RejectsAccessToken(t *testing.T) {
	server := newTestServer(t)

	pair, err := server.tokenService.GenerateTokenPair(server.user.ID)
	require.NoError(t, err)

	// Presenting the access token on the refresh route must fail the token
	// type check.
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: cookie.NameRefreshToken, Value: pair.AccessToken})
	req.AddCookie(&http.Cookie{Name: cookie.NameDeviceID, Value: uuid.NewString()})

	rec := server.do(req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeResponse(t, rec)
	assert.Equal(t, "Authentication failed", body.Message)
}

func TestAuthHandler_CSRFToken(t *testing.T) {
	server := newTestServer(t)

	rec := server.do(httptest.NewRequest(http.MethodPost, "/auth/csrf-token", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeResponse(t, rec)
	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["csrfToken"])
	assert.NotEmpty(t, data["deviceId"])

	assert.NotNil(t, responseCookie(rec, "csrf"))
	assert.NotNil(t, responseCookie(rec, cookie.NameDeviceID))
}

func TestAuthHandler_SignUpMeSignOutFlow(t *testing.T) {
	server := newTestServer(t)

	signupRec := server.do(jsonRequest(http.MethodPost, "/auth/signup",
		`{"email":"alice@example.com","name":"Alice","password":"long enough password"}`))
	require.Equal(t, http.StatusCreated, signupRec.Code)
	sessionCookies := signupRec.Result().Cookies()

	withCookies := func(req *http.Request) *http.Request {
		for _, c := range sessionCookies {
			req.AddCookie(c)
		}

		return req
	}

	meRec := server.do(withCookies(httptest.NewRequest(http.MethodGet, "/auth/me", nil)))
	require.Equal(t, http.StatusOK, meRec.Code)

	signOutRec := server.do(withCookies(httptest.NewRequest(http.MethodPost, "/auth/signout", nil)))
	require.Equal(t, http.StatusOK, signOutRec.Code)

	// Re-presenting the old cookies after signout must fail the guard.
	deadRec := server.do(withCookies(httptest.NewRequest(http.MethodGet, "/auth/me", nil)))
	require.Equal(t, http.StatusUnauthorized, deadRec.Code)
	body := decodeResponse(t, deadRec)
	assert.Equal(t, "Authentication failed", body.Message)
}

func TestHealthCheck(t *testing.T) {
	server := newTestServer(t)

	rec := server.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
