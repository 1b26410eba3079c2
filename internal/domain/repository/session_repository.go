package repository

import (
	"context"
	"errors"
	"time"

	"tally/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when no session exists for the requested key.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository defines persistence operations for device-bound sessions.
// The composite key is (userID, deviceID); at most one row exists per pair.
// Session rows are owned exclusively by this repository: no other component
// writes them.
type SessionRepository interface {
	// Create inserts a new session row.
	Create(ctx context.Context, session *entity.Session) error

	// FindByUserAndDevice retrieves the session for the composite key.
	FindByUserAndDevice(ctx context.Context, userID uuid.UUID, deviceID string) (*entity.Session, error)

	// FindByUserID retrieves all sessions for a user, most recently used first.
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.Session, error)

	// TouchLastUsed updates last_used_at for the session.
	TouchLastUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) error

	// DeleteByUserAndDevice removes the session for the composite key and
	// reports how many rows were deleted; deleting an absent session is not
	// an error.
	DeleteByUserAndDevice(ctx context.Context, userID uuid.UUID, deviceID string) (int64, error)

	// DeleteByID removes a single session row.
	DeleteByID(ctx context.Context, id uuid.UUID) error

	// DeleteByUserID removes all sessions for a user.
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error

	// DeleteExpired removes all sessions with expires_at before now and
	// reports how many rows were deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// CountByUserID returns the number of sessions currently stored for a user.
	CountByUserID(ctx context.Context, userID uuid.UUID) (int, error)
}
