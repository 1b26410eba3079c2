package impl

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "tally/internal/delivery/context"
	"tally/internal/domain/entity"
	domainerrors "tally/internal/domain/errors"
	"tally/internal/domain/repository"
	"tally/internal/domain/service"
	"tally/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// authService implements the AuthUsecase interface. It composes the user
// store, the session store and the token signer; nothing else issues or
// invalidates credentials.
type authService struct {
	txManager      repository.TransactionManager
	userRepo       repository.UserRepository
	sessionUsecase usecase.SessionUsecase
	hasher         service.PasswordHasher
	tokenService   service.TokenService
	logger         *slog.Logger
}

// AuthServiceParams holds dependencies for authService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager      repository.TransactionManager
	UserRepo       repository.UserRepository
	SessionUsecase usecase.SessionUsecase
	Hasher         service.PasswordHasher
	TokenService   service.TokenService
	Logger         *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all dependencies as interfaces.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	return &authService{
		txManager:      params.TxManager,
		userRepo:       params.UserRepo,
		sessionUsecase: params.SessionUsecase,
		hasher:         params.Hasher,
		tokenService:   params.TokenService,
		logger:         params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// logFailure logs expected domain failures at warning and anything
// unrecognized at error, per the observability contract.
func (srv *authService) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs, slog.Any("error", err))

	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		attrs = append(attrs, slog.String("error_code", appErr.ErrorCode()))
		srv.log(ctx).Warn(msg, attrs...)

		return
	}

	srv.log(ctx).Error(msg, attrs...)
}

// SignUp registers a new account and signs it in on the given device,
// exactly like a signin would.
func (srv *authService) SignUp(ctx context.Context, input *usecase.SignUpInput) (*usecase.AuthOutput, error) {
	srv.log(ctx).Debug("Starting signup",
		slog.String("email", input.Email), slog.String("device_id", input.DeviceID))

	if err := srv.ValidateDeviceID(input.DeviceID); err != nil {
		srv.logFailure(ctx, "Signup failed", err, slog.String("email", input.Email))

		return nil, err
	}

	// bcrypt is CPU-bound; hash outside the transaction.
	hashedPassword, err := srv.hasher.Hash(input.Password)
	if err != nil {
		srv.log(ctx).Error("Failed to hash password during signup", slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to hash password during signup")
	}

	newUser := &entity.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hashedPassword,
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.UserRepo()

		// Pre-check keeps the common duplicate path off the constraint
		// violation; the unique index still backstops races.
		_, findErr := userRepo.FindByEmail(ctx, input.Email)
		if findErr == nil {
			return domainerrors.ErrUserAlreadyExists.WrapMessage("email already registered")
		}
		if !errors.Is(findErr, repository.ErrUserNotFound) {
			return errors.Wrap(findErr, "failed to check email availability")
		}

		return userRepo.Create(ctx, newUser)
	})
	if err != nil {
		srv.logFailure(ctx, "Signup failed", err, slog.String("email", input.Email))

		return nil, err
	}

	output, err := srv.SignIn(ctx, &usecase.SignInInput{User: newUser, DeviceID: input.DeviceID})
	if err != nil {
		srv.logFailure(ctx, "Signup failed during initial signin", err, slog.String("email", input.Email))

		return nil, err
	}

	srv.log(ctx).Info("Signup successful",
		slog.Any("user_id", newUser.ID), slog.String("device_id", input.DeviceID))

	return output, nil
}

// ValidateCredentials verifies an email/password pair. The error never tells
// the caller whether the email or the password was wrong.
func (srv *authService) ValidateCredentials(ctx context.Context, email, password string) (*entity.User, error) {
	srv.log(ctx).Debug("Starting credential validation", slog.String("email", email))

	user, err := srv.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			srv.log(ctx).Warn("Credential validation failed",
				slog.String("email", email), slog.String("reason", "user not found"))

			return nil, domainerrors.ErrAuthenticationFailed.WrapMessage("unknown email")
		}

		srv.log(ctx).Error("Failed to load user for credential validation",
			slog.String("email", email), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to load user for credential validation")
	}

	if !srv.hasher.Check(password, user.PasswordHash) {
		srv.log(ctx).Warn("Credential validation failed",
			slog.String("email", email), slog.String("reason", "password mismatch"))

		return nil, domainerrors.ErrAuthenticationFailed.WrapMessage(domainerrors.ErrInvalidCredentials.Error())
	}

	srv.log(ctx).Info("Credential validation successful", slog.Any("user_id", user.ID))

	return user.Public(), nil
}

// SignIn creates or rotates the session for (user, device) and signs a fresh
// access+refresh pair.
func (srv *authService) SignIn(ctx context.Context, input *usecase.SignInInput) (*usecase.AuthOutput, error) {
	srv.log(ctx).Debug("Starting signin",
		slog.Any("user_id", input.User.ID), slog.String("device_id", input.DeviceID))

	if err := srv.ValidateDeviceID(input.DeviceID); err != nil {
		srv.logFailure(ctx, "Signin failed", err, slog.Any("user_id", input.User.ID))

		return nil, err
	}

	pair, err := srv.tokenService.GenerateTokenPair(input.User.ID)
	if err != nil {
		srv.log(ctx).Error("Failed to generate token pair",
			slog.Any("user_id", input.User.ID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to generate token pair")
	}

	if err := srv.sessionUsecase.EnforceSessionLimit(ctx, input.User.ID); err != nil {
		srv.logFailure(ctx, "Signin failed", err, slog.Any("user_id", input.User.ID))

		return nil, err
	}

	err = srv.sessionUsecase.CreateSessionWithToken(ctx, &usecase.NewSessionInput{
		UserID:       input.User.ID,
		DeviceID:     input.DeviceID,
		RefreshToken: pair.RefreshToken,
		TokenID:      pair.TokenID,
		ExpiresAt:    time.Now().Add(srv.tokenService.RefreshTokenDuration()),
	})
	if err != nil {
		srv.logFailure(ctx, "Signin failed", err, slog.Any("user_id", input.User.ID))

		return nil, err
	}

	srv.log(ctx).Info("Signin successful",
		slog.Any("user_id", input.User.ID), slog.String("device_id", input.DeviceID))

	return &usecase.AuthOutput{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         input.User.Public(),
	}, nil
}

// SignOut deletes the session for (user, device). Signing out twice in a row
// is not an error.
func (srv *authService) SignOut(ctx context.Context, userID uuid.UUID, deviceID string) error {
	srv.log(ctx).Debug("Starting signout",
		slog.Any("user_id", userID), slog.String("device_id", deviceID))

	if err := srv.ValidateDeviceID(deviceID); err != nil {
		srv.logFailure(ctx, "Signout failed", err, slog.Any("user_id", userID))

		return err
	}

	if err := srv.sessionUsecase.RemoveSessionForDevice(ctx, userID, deviceID); err != nil {
		srv.logFailure(ctx, "Signout failed", err, slog.Any("user_id", userID))

		return err
	}

	srv.log(ctx).Info("Signout successful",
		slog.Any("user_id", userID), slog.String("device_id", deviceID))

	return nil
}

// ValidateDeviceID checks that the value parses as a UUID. Format check only;
// no existence check.
func (srv *authService) ValidateDeviceID(deviceID string) error {
	if deviceID == "" {
		return domainerrors.ErrInvalidDeviceID.WrapMessage("device id is empty")
	}
	if _, err := uuid.Parse(deviceID); err != nil {
		return domainerrors.ErrInvalidDeviceID.WrapMessage("device id is not a well-formed identifier")
	}

	return nil
}

// ValidateAccessToken confirms the user exists and a live session exists for
// (user, device). Every failure path collapses into a single access token
// validation error carrying the original cause; an error that already is one
// passes through unchanged.
func (srv *authService) ValidateAccessToken(ctx context.Context, userID uuid.UUID, deviceID string) (*entity.User, error) {
	srv.log(ctx).Debug("Starting access token validation",
		slog.Any("user_id", userID), slog.String("device_id", deviceID))

	user, err := srv.validateAccessToken(ctx, userID, deviceID)
	if err != nil {
		wrapped := domainerrors.NewTokenValidationError("access", err)
		srv.logFailure(ctx, "Access token validation failed", wrapped,
			slog.Any("user_id", userID), slog.String("device_id", deviceID))

		return nil, wrapped
	}

	srv.log(ctx).Info("Access token validation successful", slog.Any("user_id", userID))

	return user, nil
}

func (srv *authService) validateAccessToken(ctx context.Context, userID uuid.UUID, deviceID string) (*entity.User, error) {
	if err := srv.ValidateDeviceID(deviceID); err != nil {
		return nil, err
	}

	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrUserNotFound.WrapMessage("token subject does not exist")
		}

		return nil, errors.Wrap(err, "failed to load user for access validation")
	}

	live, err := srv.sessionUsecase.HasLiveSession(ctx, userID, deviceID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check session liveness")
	}
	if !live {
		return nil, domainerrors.ErrSessionNotFound.WrapMessage("no live session for device")
	}

	return user.Public(), nil
}

// ValidateRefreshToken confirms the session accepts the presented refresh
// token and that its embedded token id matches the one stored server-side.
// A mismatch on either check means a rotated-out token is being replayed: the
// session is revoked and the attempt is logged as a security event. Every
// failure path collapses into a single refresh token validation error.
func (srv *authService) ValidateRefreshToken(ctx context.Context, userID uuid.UUID, refreshToken, deviceID string) (*entity.User, error) {
	srv.log(ctx).Debug("Starting refresh token validation",
		slog.Any("user_id", userID), slog.String("device_id", deviceID))

	user, err := srv.validateRefreshToken(ctx, userID, refreshToken, deviceID)
	if err != nil {
		wrapped := domainerrors.NewTokenValidationError("refresh", err)
		srv.logFailure(ctx, "Refresh token validation failed", wrapped,
			slog.Any("user_id", userID), slog.String("device_id", deviceID))

		return nil, wrapped
	}

	srv.log(ctx).Info("Refresh token validation successful", slog.Any("user_id", userID))

	return user, nil
}

func (srv *authService) validateRefreshToken(ctx context.Context, userID uuid.UUID, refreshToken, deviceID string) (*entity.User, error) {
	if err := srv.ValidateDeviceID(deviceID); err != nil {
		return nil, err
	}

	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrUserNotFound.WrapMessage("token subject does not exist")
		}

		return nil, errors.Wrap(err, "failed to load user for refresh validation")
	}

	session, err := srv.sessionUsecase.GetValidSession(ctx, userID, deviceID, refreshToken)
	if err != nil {
		if errors.Is(err, domainerrors.ErrInvalidRefreshToken) {
			srv.revokeReplayedSession(ctx, userID, deviceID)
		}

		return nil, err
	}

	claims, err := srv.tokenService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode refresh token")
	}

	if claims.TokenID != session.TokenID {
		srv.revokeReplayedSession(ctx, userID, deviceID)

		return nil, domainerrors.ErrInvalidRefreshToken.WrapMessage("token id does not match session")
	}

	return user.Public(), nil
}

// revokeReplayedSession drops the session after a reuse signal so the stolen
// or stale token chain dies with it.
func (srv *authService) revokeReplayedSession(ctx context.Context, userID uuid.UUID, deviceID string) {
	srv.log(ctx).Warn("token rotation detected",
		slog.Any("user_id", userID), slog.String("device_id", deviceID))

	if err := srv.sessionUsecase.RemoveSessionForDevice(ctx, userID, deviceID); err != nil {
		srv.log(ctx).Error("Failed to revoke session after rotation reuse",
			slog.Any("user_id", userID), slog.String("device_id", deviceID), slog.Any("error", err))
	}
}

// RenewAccessToken re-signs only the access token for an already-validated
// user; the refresh flow has proved identity by the time this runs.
func (srv *authService) RenewAccessToken(ctx context.Context, user *entity.User) (*usecase.RenewOutput, error) {
	srv.log(ctx).Debug("Starting access token renewal", slog.Any("user_id", user.ID))

	accessToken, err := srv.tokenService.GenerateAccessToken(user.ID)
	if err != nil {
		srv.log(ctx).Error("Failed to renew access token",
			slog.Any("user_id", user.ID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to renew access token")
	}

	srv.log(ctx).Info("Access token renewed", slog.Any("user_id", user.ID))

	return &usecase.RenewOutput{
		AccessToken: accessToken,
		User:        user.Public(),
	}, nil
}
