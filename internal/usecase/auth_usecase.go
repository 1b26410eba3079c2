// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"tally/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// SignUpInput defines the data required to register a new account.
type SignUpInput struct {
	Name     string
	Email    string
	Password string
	DeviceID string
}

// SignInInput defines the already-verified identity and device for a login.
// Credential verification happens separately via ValidateCredentials so the
// delivery layer can guard routes without issuing tokens.
type SignInInput struct {
	User     *entity.User
	DeviceID string
}

// --- Output DTOs ---

// AuthOutput returns the authenticated user and a fresh token pair.
type AuthOutput struct {
	AccessToken  string
	RefreshToken string
	User         *entity.User
}

// RenewOutput returns the re-signed access token from the refresh flow.
type RenewOutput struct {
	AccessToken string
	User        *entity.User
}

// AuthUsecase defines the interface for authentication business operations.
// This is the contract that the delivery layer (e.g., API handlers) will depend on.
// It is the only component permitted to issue or invalidate credentials.
type AuthUsecase interface {
	// SignUp registers a new account and signs it in on the given device.
	SignUp(ctx context.Context, input *SignUpInput) (*AuthOutput, error)

	// ValidateCredentials verifies an email/password pair. The returned user
	// has credential material stripped. Failure never distinguishes "no such
	// user" from "wrong password".
	ValidateCredentials(ctx context.Context, email, password string) (*entity.User, error)

	// SignIn creates or rotates the session for (user, device) and signs a
	// fresh access+refresh pair.
	SignIn(ctx context.Context, input *SignInInput) (*AuthOutput, error)

	// SignOut deletes the session for (user, device). Idempotent; signing
	// out an absent session is not an error.
	SignOut(ctx context.Context, userID uuid.UUID, deviceID string) error

	// ValidateDeviceID checks that the value is a well-formed identifier.
	// Format check only, no existence check.
	ValidateDeviceID(deviceID string) error

	// ValidateAccessToken confirms the user exists and a live session exists
	// for (user, device). Every failure surfaces as a token validation
	// error for the access token type.
	ValidateAccessToken(ctx context.Context, userID uuid.UUID, deviceID string) (*entity.User, error)

	// ValidateRefreshToken confirms the session for (user, device) accepts
	// the presented refresh token, including the rotation-reuse check on the
	// embedded token id. Every failure surfaces as a token validation error
	// for the refresh token type.
	ValidateRefreshToken(ctx context.Context, userID uuid.UUID, refreshToken, deviceID string) (*entity.User, error)

	// RenewAccessToken re-signs only the access token for an already
	// validated user.
	RenewAccessToken(ctx context.Context, user *entity.User) (*RenewOutput, error)
}
