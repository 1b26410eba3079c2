package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the decoded payload of an access or refresh token.
type Claims struct {
	UserID  uuid.UUID
	TokenID uuid.UUID // jti; compared against the session's stored token id for refresh tokens
	Type    string    // "access" or "refresh"
	jwt.RegisteredClaims
}

// TokenService signs and verifies JWTs. Access and refresh tokens use
// separate secrets and lifetimes.
type TokenService interface {
	// GenerateTokenPair creates a fresh access+refresh pair for a user.
	// The returned token id is the refresh token's jti claim.
	GenerateTokenPair(userID uuid.UUID) (*TokenPair, error)

	// GenerateAccessToken signs a new access token only, used when a
	// validated refresh flow renews the short-lived token.
	GenerateAccessToken(userID uuid.UUID) (string, error)

	// ValidateAccessToken verifies signature, expiry and token type.
	ValidateAccessToken(tokenString string) (*Claims, error)

	// ValidateRefreshToken verifies signature, expiry and token type.
	ValidateRefreshToken(tokenString string) (*Claims, error)

	// HashToken returns the hex-encoded SHA-256 of a raw token, the form in
	// which refresh tokens are stored server-side.
	HashToken(token string) string

	// AccessTokenDuration returns the configured access token TTL.
	AccessTokenDuration() time.Duration

	// RefreshTokenDuration returns the configured refresh token TTL.
	RefreshTokenDuration() time.Duration
}

// TokenPair is the result of GenerateTokenPair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenID      uuid.UUID
}
