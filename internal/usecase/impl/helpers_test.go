package impl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"tally/internal/domain/entity"
	"tally/internal/domain/repository"
	"tally/internal/domain/service"

	"github.com/google/uuid"
)

// memoryUserRepo is an in-memory UserRepository for tests.
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*entity.User

	findByEmailErr error
	findByIDErr    error
	createErr      error
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[uuid.UUID]*entity.User)}
}

func (r *memoryUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	if r.findByIDErr != nil {
		return nil, r.findByIDErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	clone := *user

	return &clone, nil
}

func (r *memoryUserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	if r.findByEmailErr != nil {
		return nil, r.findByEmailErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Email == email {
			clone := *user

			return &clone, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r *memoryUserRepo) Create(ctx context.Context, user *entity.User) error {
	if r.createErr != nil {
		return r.createErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	clone := *user
	r.users[user.ID] = &clone

	return nil
}

func (r *memoryUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(r.users, id)

	return nil
}

// memorySessionRepo is an in-memory SessionRepository for tests.
type memorySessionRepo struct {
	mu       sync.Mutex
	sessions []*entity.Session

	createErr        error
	findErr          error
	deleteErr        error
	deleteExpiredErr error
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{}
}

func (r *memorySessionRepo) Create(ctx context.Context, session *entity.Session) error {
	if r.createErr != nil {
		return r.createErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	clone := *session
	r.sessions = append(r.sessions, &clone)

	return nil
}

func (r *memorySessionRepo) FindByUserAndDevice(ctx context.Context, userID uuid.UUID, deviceID string) (*entity.Session, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, session := range r.sessions {
		if session.UserID == userID && session.DeviceID == deviceID {
			clone := *session

			return &clone, nil
		}
	}

	return nil, repository.ErrSessionNotFound
}

func (r *memorySessionRepo) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.Session, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.Session
	for _, session := range r.sessions {
		if session.UserID == userID {
			clone := *session
			result = append(result, &clone)
		}
	}

	// Most recently used first, ties broken by newest created_at, matching
	// the SQL ordering.
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].LastUsedAt.Equal(result[j].LastUsedAt) {
			return result[i].LastUsedAt.After(result[j].LastUsedAt)
		}

		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *memorySessionRepo) TouchLastUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, session := range r.sessions {
		if session.ID == id {
			session.LastUsedAt = usedAt

			return nil
		}
	}

	return repository.ErrSessionNotFound
}

func (r *memorySessionRepo) DeleteByUserAndDevice(ctx context.Context, userID uuid.UUID, deviceID string) (int64, error) {
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	kept := r.sessions[:0]
	for _, session := range r.sessions {
		if session.UserID == userID && session.DeviceID == deviceID {
			removed++

			continue
		}
		kept = append(kept, session)
	}
	r.sessions = kept

	return removed, nil
}

func (r *memorySessionRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.sessions[:0]
	for _, session := range r.sessions {
		if session.ID == id {
			continue
		}
		kept = append(kept, session)
	}
	r.sessions = kept

	return nil
}

func (r *memorySessionRepo) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.sessions[:0]
	for _, session := range r.sessions {
		if session.UserID == userID {
			continue
		}
		kept = append(kept, session)
	}
	r.sessions = kept

	return nil
}

func (r *memorySessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if r.deleteExpiredErr != nil {
		return 0, r.deleteExpiredErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	kept := r.sessions[:0]
	for _, session := range r.sessions {
		if session.Expired(now) {
			removed++

			continue
		}
		kept = append(kept, session)
	}
	r.sessions = kept

	return removed, nil
}

func (r *memorySessionRepo) CountByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, session := range r.sessions {
		if session.UserID == userID {
			count++
		}
	}

	return count, nil
}

func (r *memorySessionRepo) all() []*entity.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*entity.Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		clone := *session
		result = append(result, &clone)
	}

	return result
}

// memoryFactory hands the shared in-memory repositories to transactional code.
type memoryFactory struct {
	userRepo    *memoryUserRepo
	sessionRepo *memorySessionRepo
}

func (f *memoryFactory) UserRepo() repository.UserRepository       { return f.userRepo }
func (f *memoryFactory) SessionRepo() repository.SessionRepository { return f.sessionRepo }

// memoryTxManager runs the callback directly; the in-memory stores have no
// transactions to speak of.
type memoryTxManager struct {
	factory *memoryFactory
	execErr error
}

func (m *memoryTxManager) Execute(ctx context.Context, fn func(repository.RepositoryFactory) error) error {
	if m.execErr != nil {
		return m.execErr
	}

	return fn(m.factory)
}

// stubTokenService issues predictable opaque tokens and records their claims
// so validation can look them up without real signing.
type stubTokenService struct {
	mu      sync.Mutex
	counter int
	claims  map[string]*service.Claims

	pairErr   error
	accessErr error
}

func newStubTokenService() *stubTokenService {
	return &stubTokenService{claims: make(map[string]*service.Claims)}
}

func (s *stubTokenService) GenerateTokenPair(userID uuid.UUID) (*service.TokenPair, error) {
	if s.pairErr != nil {
		return nil, s.pairErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	tokenID := uuid.New()
	access := fmt.Sprintf("access-%d", s.counter)
	refresh := fmt.Sprintf("refresh-%d", s.counter)

	s.claims[access] = &service.Claims{UserID: userID, TokenID: uuid.New(), Type: "access"}
	s.claims[refresh] = &service.Claims{UserID: userID, TokenID: tokenID, Type: "refresh"}

	return &service.TokenPair{AccessToken: access, RefreshToken: refresh, TokenID: tokenID}, nil
}

func (s *stubTokenService) GenerateAccessToken(userID uuid.UUID) (string, error) {
	if s.accessErr != nil {
		return "", s.accessErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	access := fmt.Sprintf("access-%d", s.counter)
	s.claims[access] = &service.Claims{UserID: userID, TokenID: uuid.New(), Type: "access"}

	return access, nil
}

func (s *stubTokenService) ValidateAccessToken(tokenString string) (*service.Claims, error) {
	return s.lookup(tokenString, "access")
}

func (s *stubTokenService) ValidateRefreshToken(tokenString string) (*service.Claims, error) {
	return s.lookup(tokenString, "refresh")
}

func (s *stubTokenService) lookup(tokenString, tokenType string) (*service.Claims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claims, ok := s.claims[tokenString]
	if !ok || claims.Type != tokenType {
		return nil, fmt.Errorf("unknown %s token", tokenType)
	}
	clone := *claims

	return &clone, nil
}

func (s *stubTokenService) HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}

func (s *stubTokenService) AccessTokenDuration() time.Duration  { return 15 * time.Minute }
func (s *stubTokenService) RefreshTokenDuration() time.Duration { return 7 * 24 * time.Hour }

// stubHasher avoids bcrypt cost in tests while preserving check semantics.
type stubHasher struct{}

func (stubHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (stubHasher) Check(password, hash string) bool {
	return hash == "hashed:"+password
}

// captureHandler is a slog.Handler that records every emitted message.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(ctx context.Context, level slog.Level) bool { return true }

func (h *captureHandler) Handle(ctx context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record.Clone())

	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(name string) slog.Handler       { return h }

func (h *captureHandler) hasMessage(level slog.Level, fragment string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, record := range h.records {
		if record.Level == level && strings.Contains(record.Message, fragment) {
			return true
		}
	}

	return false
}

// testEnv bundles the fakes that the service constructors need.
type testEnv struct {
	userRepo     *memoryUserRepo
	sessionRepo  *memorySessionRepo
	txManager    *memoryTxManager
	tokenService *stubTokenService
	logHandler   *captureHandler
	logger       *slog.Logger
}

func newTestEnv() *testEnv {
	userRepo := newMemoryUserRepo()
	sessionRepo := newMemorySessionRepo()
	factory := &memoryFactory{userRepo: userRepo, sessionRepo: sessionRepo}
	handler := &captureHandler{}

	return &testEnv{
		userRepo:     userRepo,
		sessionRepo:  sessionRepo,
		txManager:    &memoryTxManager{factory: factory},
		tokenService: newStubTokenService(),
		logHandler:   handler,
		logger:       slog.New(handler),
	}
}

func (e *testEnv) newSessionService(maxSessions int) *sessionService {
	return &sessionService{
		txManager:         e.txManager,
		sessionRepo:       e.sessionRepo,
		tokenService:      e.tokenService,
		maxActiveSessions: maxSessions,
		logger:            e.logger,
		now:               time.Now,
	}
}

func (e *testEnv) newAuthService(maxSessions int) *authService {
	return &authService{
		txManager:      e.txManager,
		userRepo:       e.userRepo,
		sessionUsecase: e.newSessionService(maxSessions),
		hasher:         stubHasher{},
		tokenService:   e.tokenService,
		logger:         e.logger,
	}
}
