package postgres

import (
	"context"
	"time"

	"tally/internal/domain/entity"
	domainerrors "tally/internal/domain/errors"
	"tally/internal/domain/repository"
	"tally/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// sessionRepository implements the domain.SessionRepository interface using GORM.
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository is the constructor for sessionRepository.
func NewSessionRepository(db *gorm.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

// Create inserts a new session row.
func (repo *sessionRepository) Create(ctx context.Context, session *entity.Session) error {
	sessionM := model.SessionModelFromEntity(session)

	if err := repo.db.WithContext(ctx).Create(sessionM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			// A row for this (user, device) pair already exists; callers
			// replace sessions with delete-then-insert, so a collision here
			// means two logins raced on the same device.
			return domainerrors.ErrSessionCreationFailed.WrapMessage("session already exists for device")
		}
		if isForeignKeyConstraintViolation(err) {
			return domainerrors.ErrSessionCreationFailed.WrapMessage("user does not exist")
		}

		return domainerrors.NewRepositoryError("create", "session", session.UserID.String(), err)
	}

	session.ID = sessionM.ID
	session.CreatedAt = sessionM.CreatedAt

	return nil
}

// FindByUserAndDevice retrieves the session for the (user, device) composite key.
func (repo *sessionRepository) FindByUserAndDevice(ctx context.Context, userID uuid.UUID, deviceID string) (*entity.Session, error) {
	var sessionM model.SessionModel
	err := repo.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		First(&sessionM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}

		return nil, domainerrors.NewRepositoryError("find", "session", userID.String(), err)
	}

	return sessionM.ToEntity(), nil
}

// FindByUserID retrieves all sessions for a user, most recently used first.
func (repo *sessionRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.Session, error) {
	var sessionMs []model.SessionModel
	err := repo.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_used_at DESC, created_at DESC").
		Find(&sessionMs).Error
	if err != nil {
		return nil, domainerrors.NewRepositoryError("list", "session", userID.String(), err)
	}

	sessions := make([]*entity.Session, 0, len(sessionMs))
	for i := range sessionMs {
		sessions = append(sessions, sessionMs[i].ToEntity())
	}

	return sessions, nil
}

// TouchLastUsed updates last_used_at for the session.
func (repo *sessionRepository) TouchLastUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	result := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Where("id = ?", id).
		Update("last_used_at", usedAt)
	if result.Error != nil {
		return domainerrors.NewRepositoryError("touch", "session", id.String(), result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrSessionNotFound
	}

	return nil
}

// DeleteByUserAndDevice removes the session for the composite key.
// Deleting an absent session is not an error; the caller gets the row count.
func (repo *sessionRepository) DeleteByUserAndDevice(ctx context.Context, userID uuid.UUID, deviceID string) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Delete(&model.SessionModel{})
	if result.Error != nil {
		return 0, domainerrors.NewRepositoryError("delete", "session", userID.String(), result.Error)
	}

	return result.RowsAffected, nil
}

// DeleteByID removes a single session row.
func (repo *sessionRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	result := repo.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.SessionModel{})
	if result.Error != nil {
		return domainerrors.NewRepositoryError("delete", "session", id.String(), result.Error)
	}

	return nil
}

// DeleteByUserID removes all sessions for a user.
func (repo *sessionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	err := repo.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.SessionModel{}).Error
	if err != nil {
		return domainerrors.NewRepositoryError("delete", "session", userID.String(), err)
	}

	return nil
}

// DeleteExpired removes all sessions past their expiry and reports the count.
func (repo *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&model.SessionModel{})
	if result.Error != nil {
		return 0, domainerrors.NewRepositoryError("sweep", "session", "", result.Error)
	}

	return result.RowsAffected, nil
}

// CountByUserID returns the number of sessions currently stored for a user.
func (repo *sessionRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, domainerrors.NewRepositoryError("count", "session", userID.String(), err)
	}

	return int(count), nil
}
