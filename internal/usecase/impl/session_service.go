// Package impl contains the application-specific business rules implementations.
package impl

import (
	"context"
	"log/slog"
	"time"

	"tally/config"
	deliverycontext "tally/internal/delivery/context"
	"tally/internal/domain/entity"
	domainerrors "tally/internal/domain/errors"
	"tally/internal/domain/repository"
	"tally/internal/domain/service"
	"tally/internal/errors"
	"tally/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

// sessionService implements the SessionUsecase interface.
type sessionService struct {
	txManager         repository.TransactionManager
	sessionRepo       repository.SessionRepository
	tokenService      service.TokenService
	maxActiveSessions int
	logger            *slog.Logger

	// now is swappable so expiry decisions are deterministic in tests.
	now func() time.Time
}

// SessionServiceParams holds dependencies for sessionService, injected by Fx.
type SessionServiceParams struct {
	fx.In

	TxManager    repository.TransactionManager
	SessionRepo  repository.SessionRepository
	TokenService service.TokenService
	Config       *config.Config
	Logger       *slog.Logger
}

// NewSessionService is the constructor for sessionService.
func NewSessionService(params SessionServiceParams) usecase.SessionUsecase {
	return &sessionService{
		txManager:         params.TxManager,
		sessionRepo:       params.SessionRepo,
		tokenService:      params.TokenService,
		maxActiveSessions: params.Config.AuthOrDefault().MaxActiveSessions,
		logger:            params.Logger,
		now:               time.Now,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *sessionService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// CreateSessionWithToken replaces any existing session for the (user, device)
// pair with a fresh row. Delete and insert run in one transaction so a crash
// between them cannot leave the device without a replaceable slot.
func (srv *sessionService) CreateSessionWithToken(ctx context.Context, input *usecase.NewSessionInput) error {
	srv.log(ctx).Debug("Starting session creation",
		slog.Any("user_id", input.UserID), slog.String("device_id", input.DeviceID))

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		sessionRepo := repoFactory.SessionRepo()

		if _, err := sessionRepo.DeleteByUserAndDevice(ctx, input.UserID, input.DeviceID); err != nil {
			return errors.Wrap(err, "failed to delete prior session")
		}

		now := srv.now()
		newSession := &entity.Session{
			UserID:     input.UserID,
			DeviceID:   input.DeviceID,
			TokenID:    input.TokenID,
			TokenHash:  srv.tokenService.HashToken(input.RefreshToken),
			LastUsedAt: now,
			ExpiresAt:  input.ExpiresAt,
		}

		if err := sessionRepo.Create(ctx, newSession); err != nil {
			return errors.Wrap(err, "failed to insert session")
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Error("Failed to create session",
			slog.Any("user_id", input.UserID), slog.String("device_id", input.DeviceID), slog.Any("error", err))

		if errors.Is(err, domainerrors.ErrSessionCreationFailed) {
			return err
		}

		// Join keeps the sentinel identity for the delivery layer and the
		// original cause for the logs.
		return errors.Join(domainerrors.ErrSessionCreationFailed, err)
	}

	srv.log(ctx).Info("Session created",
		slog.Any("user_id", input.UserID), slog.String("device_id", input.DeviceID))

	return nil
}

// GetValidSession returns the session for (user, device) if it is usable with
// the presented refresh token, touching last_used_at as a side effect.
func (srv *sessionService) GetValidSession(ctx context.Context, userID uuid.UUID, deviceID, refreshToken string) (*entity.Session, error) {
	srv.log(ctx).Debug("Starting session validation",
		slog.Any("user_id", userID), slog.String("device_id", deviceID))

	session, err := srv.sessionRepo.FindByUserAndDevice(ctx, userID, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			srv.log(ctx).Warn("Session validation failed",
				slog.Any("user_id", userID), slog.String("device_id", deviceID),
				slog.String("reason", "session not found"))

			return nil, domainerrors.ErrSessionNotFound.WrapMessage("no session for device")
		}

		srv.log(ctx).Error("Failed to load session",
			slog.Any("user_id", userID), slog.String("device_id", deviceID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to load session")
	}

	if session.Expired(srv.now()) {
		srv.log(ctx).Warn("Session validation failed",
			slog.Any("user_id", userID), slog.String("device_id", deviceID),
			slog.String("reason", "session expired"))

		return nil, domainerrors.ErrSessionExpired.WrapMessage("session past expiry")
	}

	if srv.tokenService.HashToken(refreshToken) != session.TokenHash {
		srv.log(ctx).Warn("Session validation failed",
			slog.Any("user_id", userID), slog.String("device_id", deviceID),
			slog.String("reason", "refresh token hash mismatch"))

		return nil, domainerrors.ErrInvalidRefreshToken.WrapMessage("refresh token does not match session")
	}

	usedAt := srv.now()
	if err := srv.sessionRepo.TouchLastUsed(ctx, session.ID, usedAt); err != nil {
		// The session already validated; a failed touch is a diagnostics
		// problem, not a reason to reject the request.
		srv.log(ctx).Warn("Failed to touch session last_used_at",
			slog.Any("session_id", session.ID), slog.Any("error", err))
	} else {
		session.LastUsedAt = usedAt
	}

	srv.log(ctx).Info("Session validated",
		slog.Any("user_id", userID), slog.String("device_id", deviceID))

	return session, nil
}

// HasLiveSession reports whether a non-expired session exists for the pair.
func (srv *sessionService) HasLiveSession(ctx context.Context, userID uuid.UUID, deviceID string) (bool, error) {
	session, err := srv.sessionRepo.FindByUserAndDevice(ctx, userID, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return false, nil
		}

		return false, errors.Wrap(err, "failed to load session")
	}

	return !session.Expired(srv.now()), nil
}

// EnforceSessionLimit evicts the least recently used session when the user is
// already at the configured maximum, making room for the next creation.
// Ties on last_used_at break by oldest created_at, then listing order.
func (srv *sessionService) EnforceSessionLimit(ctx context.Context, userID uuid.UUID) error {
	if srv.maxActiveSessions <= 0 {
		return nil
	}

	srv.log(ctx).Debug("Starting session limit check", slog.Any("user_id", userID))

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		sessionRepo := repoFactory.SessionRepo()

		sessions, err := sessionRepo.FindByUserID(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "failed to list sessions")
		}
		if len(sessions) < srv.maxActiveSessions {
			return nil
		}

		// FindByUserID orders most recently used first, so the victim is the
		// last element.
		oldest := sessions[len(sessions)-1]
		if err := sessionRepo.DeleteByID(ctx, oldest.ID); err != nil {
			return errors.Wrap(err, "failed to evict oldest session")
		}

		srv.log(ctx).Info("Evicted oldest session for limit",
			slog.Any("user_id", userID),
			slog.String("device_id", oldest.DeviceID),
			slog.Time("last_used_at", oldest.LastUsedAt),
			slog.Int("max_active_sessions", srv.maxActiveSessions))

		return nil
	})
	if err != nil {
		srv.log(ctx).Error("Failed to enforce session limit",
			slog.Any("user_id", userID), slog.Any("error", err))

		if errors.Is(err, domainerrors.ErrSessionLimitExceeded) {
			return err
		}

		return errors.Join(domainerrors.ErrSessionLimitExceeded, err)
	}

	return nil
}

// RemoveSessionForDevice deletes the session for the (user, device) pair.
// Idempotent; removing an absent session is not an error.
func (srv *sessionService) RemoveSessionForDevice(ctx context.Context, userID uuid.UUID, deviceID string) error {
	rows, err := srv.sessionRepo.DeleteByUserAndDevice(ctx, userID, deviceID)
	if err != nil {
		srv.log(ctx).Error("Failed to remove session",
			slog.Any("user_id", userID), slog.String("device_id", deviceID), slog.Any("error", err))

		return errors.Wrap(err, "failed to remove session for device")
	}

	srv.log(ctx).Debug("Removed session for device",
		slog.Any("user_id", userID), slog.String("device_id", deviceID), slog.Int64("rows", rows))

	return nil
}

// RemoveAllSessionsForUser bulk-deletes every session the user holds.
func (srv *sessionService) RemoveAllSessionsForUser(ctx context.Context, userID uuid.UUID) error {
	srv.log(ctx).Info("Removing all sessions for user", slog.Any("user_id", userID))

	if err := srv.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		srv.log(ctx).Error("Failed to remove sessions",
			slog.Any("user_id", userID), slog.Any("error", err))

		return errors.Wrap(err, "failed to remove all sessions for user")
	}

	return nil
}

// CleanupExpiredSessions deletes every session past its expiry. An error that
// is already a cleanup failure passes through unchanged.
func (srv *sessionService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	srv.log(ctx).Debug("Starting expired session sweep")

	removed, err := srv.sessionRepo.DeleteExpired(ctx, srv.now())
	if err != nil {
		srv.log(ctx).Error("Failed to sweep expired sessions", slog.Any("error", err))

		if errors.Is(err, domainerrors.ErrSessionCleanupFailed) {
			return 0, err
		}

		return 0, errors.Join(domainerrors.ErrSessionCleanupFailed, err)
	}

	srv.log(ctx).Info("Expired session sweep completed", slog.Int64("removed", removed))

	return removed, nil
}
