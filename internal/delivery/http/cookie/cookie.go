// Package cookie centralizes cookie issuance so the rest of the system never
// branches on environment directly. Development and production differ only in
// the secure/sameSite flags and the CSRF cookie name; set and clear always
// use the same flags, because a browser will not clear a cookie whose
// attributes do not match the ones it was set with.
package cookie

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"tally/config"
	"tally/internal/domain/service"
	"tally/internal/errors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	// NameDeviceID is the long-lived device correlation cookie.
	NameDeviceID = "deviceId"

	// NameAccessToken carries the short-lived JWT.
	NameAccessToken = "accessToken"

	// NameRefreshToken carries the refresh JWT, scoped to the refresh
	// endpoint only.
	NameRefreshToken = "refreshToken"

	csrfCookieDev  = "csrf"
	csrfCookieProd = "__Host-csrf"

	refreshCookiePath = "/auth/refresh"
)

// Manager issues and clears the auth cookie set with environment-appropriate
// flags.
type Manager struct {
	production      bool
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	deviceCookieTTL time.Duration
	csrfSecret      string
}

// NewManager is the constructor for Manager. Token TTLs follow the signing
// service so cookie lifetimes always match token lifetimes.
func NewManager(cfg *config.Config, tokenService service.TokenService) *Manager {
	return &Manager{
		production:      cfg.IsProduction(),
		accessTokenTTL:  tokenService.AccessTokenDuration(),
		refreshTokenTTL: tokenService.RefreshTokenDuration(),
		deviceCookieTTL: cfg.AuthOrDefault().DeviceCookieTTL,
		csrfSecret:      cfg.SecretKey.CSRF,
	}
}

// flags returns the environment-conditional cookie attributes.
// Production serves the API cross-site, so cookies need Secure + None;
// development runs over plain HTTP where Lax is the only workable choice.
func (m *Manager) flags() (secure bool, sameSite http.SameSite) {
	if m.production {
		return true, http.SameSiteNoneMode
	}

	return false, http.SameSiteLaxMode
}

// CSRFCookieName returns the environment-appropriate CSRF cookie name.
// The __Host- prefix enforces Secure + Path=/ in browsers, which only works
// in production.
func (m *Manager) CSRFCookieName() string {
	if m.production {
		return csrfCookieProd
	}

	return csrfCookieDev
}

// GenerateDeviceID returns a new cryptographically random device identifier.
// UUIDv4 so the format check on the server accepts it.
func (m *Manager) GenerateDeviceID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", errors.Wrap(err, "failed to generate device id")
	}

	return id.String(), nil
}

// GetOrCreateDeviceID returns the device id from the request cookie, or
// generates one and sets it on the response with a long expiry.
func (m *Manager) GetOrCreateDeviceID(c echo.Context) (string, error) {
	if existing := ExtractTokenFromCookie(c, NameDeviceID); existing != "" {
		return existing, nil
	}

	deviceID, err := m.GenerateDeviceID()
	if err != nil {
		return "", err
	}

	m.setCookie(c, NameDeviceID, deviceID, "/", m.deviceCookieTTL)

	return deviceID, nil
}

// SetAuthCookies sets the access and refresh token cookies. The refresh
// cookie is path-restricted so browsers only send it to the refresh endpoint.
func (m *Manager) SetAuthCookies(c echo.Context, accessToken, refreshToken string) {
	m.SetAccessCookie(c, accessToken)
	m.setCookie(c, NameRefreshToken, refreshToken, refreshCookiePath, m.refreshTokenTTL)
}

// SetAccessCookie sets only the access token cookie, used by the renew flow.
func (m *Manager) SetAccessCookie(c echo.Context, accessToken string) {
	m.setCookie(c, NameAccessToken, accessToken, "/", m.accessTokenTTL)
}

// ClearAuthCookies clears the device, CSRF, access and refresh cookies
// together, with the same flags they were set with.
func (m *Manager) ClearAuthCookies(c echo.Context) {
	m.clearCookie(c, NameAccessToken, "/")
	m.clearCookie(c, NameRefreshToken, refreshCookiePath)
	m.clearCookie(c, NameDeviceID, "/")
	m.clearCookie(c, m.CSRFCookieName(), "/")
}

// IssueCSRFToken mints a random token, binds it to the CSRF cookie as
// token.signature, and returns the bare token for the client to echo back in
// a header.
func (m *Manager) IssueCSRFToken(c echo.Context) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.Wrap(err, "failed to generate csrf token")
	}
	token := hex.EncodeToString(raw)

	mac := hmac.New(sha256.New, []byte(m.csrfSecret))
	mac.Write([]byte(token))
	signed := token + "." + hex.EncodeToString(mac.Sum(nil))

	m.setCookie(c, m.CSRFCookieName(), signed, "/", m.accessTokenTTL)

	return token, nil
}

// VerifyCSRFToken checks a presented token against the signed cookie value.
func (m *Manager) VerifyCSRFToken(c echo.Context, token string) bool {
	signed := ExtractTokenFromCookie(c, m.CSRFCookieName())
	if signed == "" || token == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(m.csrfSecret))
	mac.Write([]byte(token))
	expected := token + "." + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signed), []byte(expected))
}

// ExtractTokenFromCookie is a defensive accessor: it returns "" rather than
// an error when the request or the cookie is absent.
func ExtractTokenFromCookie(c echo.Context, name string) string {
	if c == nil || c.Request() == nil {
		return ""
	}

	cookie, err := c.Request().Cookie(name)
	if err != nil || cookie == nil {
		return ""
	}

	return cookie.Value
}

func (m *Manager) setCookie(c echo.Context, name, value, path string, ttl time.Duration) {
	secure, sameSite := m.flags()

	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}

func (m *Manager) clearCookie(c echo.Context, name, path string) {
	secure, sameSite := m.flags()

	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}
