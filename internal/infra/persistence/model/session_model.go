package model

import (
	"time"

	"github.com/google/uuid"

	"tally/internal/domain/entity"
)

// SessionModel mirrors the 'sessions' table. A user holds at most one session
// per device, enforced by the composite unique index on (user_id, device_id).
type SessionModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_sessions_user_device;index"`
	DeviceID   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_sessions_user_device"`
	TokenID    uuid.UUID `gorm:"type:uuid;not null"`
	TokenHash  string    `gorm:"type:varchar(64);not null"`
	CreatedAt  time.Time
	LastUsedAt time.Time `gorm:"not null;index"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName explicitly sets the table name for GORM.
func (SessionModel) TableName() string {
	return "sessions"
}

// ToEntity converts the persistence model to the domain entity.
func (m *SessionModel) ToEntity() *entity.Session {
	return &entity.Session{
		ID:         m.ID,
		UserID:     m.UserID,
		DeviceID:   m.DeviceID,
		TokenID:    m.TokenID,
		TokenHash:  m.TokenHash,
		CreatedAt:  m.CreatedAt,
		LastUsedAt: m.LastUsedAt,
		ExpiresAt:  m.ExpiresAt,
	}
}

// SessionModelFromEntity converts a domain entity to the persistence model.
func SessionModelFromEntity(session *entity.Session) *SessionModel {
	return &SessionModel{
		ID:         session.ID,
		UserID:     session.UserID,
		DeviceID:   session.DeviceID,
		TokenID:    session.TokenID,
		TokenHash:  session.TokenHash,
		CreatedAt:  session.CreatedAt,
		LastUsedAt: session.LastUsedAt,
		ExpiresAt:  session.ExpiresAt,
	}
}
