// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tally/config"
	"tally/internal/domain/service"
	"tally/internal/errors"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// jwtClaims is the wire form of service.Claims. The token type rides along
// so an access token can never pass refresh validation or vice versa.
type jwtClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// jwtService is a concrete implementation of the TokenService interface using the JWT standard.
type jwtService struct {
	accessSecret  string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewJWTService is the constructor for jwtService.
// It takes configuration values to create a new token service instance.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	if cfg.SecretKey.Access == "" || cfg.SecretKey.Refresh == "" {
		return nil, errors.New("jwt secrets must be provided")
	}

	auth := cfg.AuthOrDefault()

	return &jwtService{
		accessSecret:  cfg.SecretKey.Access,
		refreshSecret: cfg.SecretKey.Refresh,
		accessTTL:     auth.AccessTokenTTL,
		refreshTTL:    auth.RefreshTokenTTL,
	}, nil
}

// GenerateTokenPair creates a new access and refresh token for a user.
// Each token carries its own jti; the refresh token's jti is returned so the
// session layer can persist it for rotation detection.
func (s *jwtService) GenerateTokenPair(userID uuid.UUID) (*service.TokenPair, error) {
	accessToken, _, err := s.signToken(userID, s.accessTTL, s.accessSecret, tokenTypeAccess)
	if err != nil {
		return nil, errors.Wrap(err, "sign access token")
	}

	refreshToken, refreshID, err := s.signToken(userID, s.refreshTTL, s.refreshSecret, tokenTypeRefresh)
	if err != nil {
		return nil, errors.Wrap(err, "sign refresh token")
	}

	return &service.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenID:      refreshID,
	}, nil
}

// GenerateAccessToken signs a standalone access token for the renew flow.
func (s *jwtService) GenerateAccessToken(userID uuid.UUID) (string, error) {
	token, _, err := s.signToken(userID, s.accessTTL, s.accessSecret, tokenTypeAccess)
	if err != nil {
		return "", errors.Wrap(err, "sign access token")
	}

	return token, nil
}

// ValidateAccessToken verifies an access token's signature, expiry and type.
func (s *jwtService) ValidateAccessToken(tokenString string) (*service.Claims, error) {
	return s.parseToken(tokenString, s.accessSecret, tokenTypeAccess)
}

// ValidateRefreshToken verifies a refresh token's signature, expiry and type.
func (s *jwtService) ValidateRefreshToken(tokenString string) (*service.Claims, error) {
	return s.parseToken(tokenString, s.refreshSecret, tokenTypeRefresh)
}

// HashToken returns the hex-encoded SHA-256 of a raw token string.
func (s *jwtService) HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}

// AccessTokenDuration returns the configured duration for access tokens.
func (s *jwtService) AccessTokenDuration() time.Duration {
	return s.accessTTL
}

// RefreshTokenDuration returns the configured duration for refresh tokens.
func (s *jwtService) RefreshTokenDuration() time.Duration {
	return s.refreshTTL
}

func (s *jwtService) signToken(userID uuid.UUID, ttl time.Duration, secret, tokenType string) (string, uuid.UUID, error) {
	now := time.Now()
	tokenID := uuid.New()

	claims := jwtClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        tokenID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", uuid.Nil, err
	}

	return signed, tokenID, nil
}

func (s *jwtService) parseToken(tokenString, secret, wantType string) (*service.Claims, error) {
	var claims jwtClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		// Ensure the signing method is what we expect.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return []byte(secret), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	if !token.Valid {
		return nil, errors.New("token is invalid")
	}
	if claims.Type != wantType {
		return nil, errors.Errorf("unexpected token type %q", claims.Type)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.Wrap(err, "parse subject claim")
	}

	tokenID, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, errors.Wrap(err, "parse jti claim")
	}

	return &service.Claims{
		UserID:           userID,
		TokenID:          tokenID,
		Type:             claims.Type,
		RegisteredClaims: claims.RegisteredClaims,
	}, nil
}
