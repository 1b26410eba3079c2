package usecase

import (
	"context"
	"time"

	"tally/internal/domain/entity"

	"github.com/google/uuid"
)

// NewSessionInput carries everything needed to persist a device session for a
// freshly signed refresh token.
type NewSessionInput struct {
	UserID       uuid.UUID
	DeviceID     string
	RefreshToken string
	TokenID      uuid.UUID
	ExpiresAt    time.Time
}

// SessionUsecase is the authority on "is this session currently usable".
type SessionUsecase interface {
	// CreateSessionWithToken replaces any existing session for the
	// (user, device) pair with a new row storing the hashed refresh token
	// and its token id.
	CreateSessionWithToken(ctx context.Context, input *NewSessionInput) error

	// GetValidSession fetches the session for (user, device), rejects it if
	// expired or if the presented token does not match the stored hash, and
	// touches last_used_at on success.
	GetValidSession(ctx context.Context, userID uuid.UUID, deviceID, refreshToken string) (*entity.Session, error)

	// HasLiveSession reports whether a non-expired session exists for the
	// (user, device) pair without touching it.
	HasLiveSession(ctx context.Context, userID uuid.UUID, deviceID string) (bool, error)

	// RemoveSessionForDevice deletes the session for the (user, device)
	// pair. Removing an absent session is not an error.
	RemoveSessionForDevice(ctx context.Context, userID uuid.UUID, deviceID string) error

	// EnforceSessionLimit evicts the least recently used session when the
	// user is at the configured maximum.
	EnforceSessionLimit(ctx context.Context, userID uuid.UUID) error

	// RemoveAllSessionsForUser bulk-deletes every session the user holds,
	// used on account-level security events.
	RemoveAllSessionsForUser(ctx context.Context, userID uuid.UUID) error

	// CleanupExpiredSessions deletes every session past its expiry and
	// reports how many rows were removed.
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}
