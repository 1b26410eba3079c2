package entity

import (
	"time"

	"github.com/google/uuid"
)

// Session represents a device-bound login: one row per (user, device) pair.
// The refresh token itself is never stored; only its SHA-256 hash and the
// token id (jti) embedded in the signed token, which together let the server
// detect reuse of a rotated-out refresh token.
type Session struct {
	ID         uuid.UUID // Surrogate key for the session row.
	UserID     uuid.UUID // Owning user.
	DeviceID   string    // Opaque device identifier issued via cookie; correlation key, not a secret.
	TokenID    uuid.UUID // jti claim of the currently valid refresh token.
	TokenHash  string    // SHA-256 hex of the raw refresh token.
	CreatedAt  time.Time
	LastUsedAt time.Time // Touched on every successful refresh validation.
	ExpiresAt  time.Time // now + refresh TTL at creation; the session is dead past this instant.
}

// Expired reports whether the session is past its expiry at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
