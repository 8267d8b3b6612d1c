package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/config"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/domain"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/repository"
	repogomock "github.com/reichmanjorgensen/legal-chat-auth/internal/repository/gomock"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/security"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"
)

const testPassword = "Str0ng!Pass"

var testPasswordHash = sync.OnceValue(func() string {
	h, err := security.HashPassword(testPassword, security.MinBcryptCost)
	if err != nil {
		panic(err)
	}
	return h
})

func testConfig() *config.Config {
	return &config.Config{
		AuthAllowedEmailDomain: "@reichmanjorgensen.com",
		AuthMaxLoginAttempts:   5,
		AuthLockoutDuration:    30 * time.Minute,
		AuthVerifyTokenTTL:     24 * time.Hour,
		AuthBcryptCost:         security.MinBcryptCost,
		AuthVerifyBaseURL:      "https://chat.example.test",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memUserStore mirrors the GORM repository semantics closely enough for
// service tests.
type memUserStore struct {
	mu        sync.Mutex
	byID      map[string]*domain.User
	deleted   []string
	createErr error
	findErr   error
	// beforeFailure runs inside RecordLoginFailure before the lock check,
	// simulating a concurrent writer.
	beforeFailure func(u *domain.User)
}

func newMemUserStore() *memUserStore {
	return &memUserStore{byID: map[string]*domain.User{}}
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func (s *memUserStore) FindByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	email = domain.CanonicalEmail(email)
	for _, u := range s.byID {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *memUserStore) FindPendingVerification(_ context.Context, email, tokenHash string, now time.Time) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = domain.CanonicalEmail(email)
	for _, u := range s.byID {
		if u.Email != email || u.IsVerified() || u.VerificationTokenHash == nil {
			continue
		}
		if *u.VerificationTokenHash == tokenHash && u.VerificationExpiresAt != nil && u.VerificationExpiresAt.After(now) {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrVerificationNotFound
}

func (s *memUserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	user.Email = domain.CanonicalEmail(user.Email)
	for _, u := range s.byID {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	s.byID[user.ID] = cloneUser(user)
	return nil
}

func (s *memUserStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(s.byID, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *memUserStore) RecordLoginFailure(_ context.Context, id string, maxAttempts int, lockout time.Duration, now time.Time) (*repository.LoginOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if s.beforeFailure != nil {
		s.beforeFailure(u)
	}
	if _, locked := u.LockedAt(now); locked {
		return &repository.LoginOutcome{User: cloneUser(u), Attempts: u.FailedLoginAttempts, LockedUntil: u.LockedUntil, AlreadyLocked: true}, nil
	}
	u.FailedLoginAttempts++
	u.LockedUntil = nil
	if u.FailedLoginAttempts >= maxAttempts {
		until := now.Add(lockout)
		u.LockedUntil = &until
	}
	return &repository.LoginOutcome{User: cloneUser(u), Attempts: u.FailedLoginAttempts, LockedUntil: u.LockedUntil}, nil
}

func (s *memUserStore) RecordLoginSuccess(_ context.Context, id, ip string, now time.Time) (*repository.LoginOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if _, locked := u.LockedAt(now); locked {
		return &repository.LoginOutcome{User: cloneUser(u), Attempts: u.FailedLoginAttempts, LockedUntil: u.LockedUntil, AlreadyLocked: true}, nil
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
	u.LastLoginIP = ip
	return &repository.LoginOutcome{User: cloneUser(u)}, nil
}

func (s *memUserStore) MarkEmailVerified(_ context.Context, id, tokenHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok || u.IsVerified() || u.VerificationTokenHash == nil || *u.VerificationTokenHash != tokenHash {
		return repository.ErrVerificationNotFound
	}
	u.EmailVerifiedAt = &now
	u.VerificationTokenHash = nil
	u.VerificationExpiresAt = nil
	return nil
}

func (s *memUserStore) ListPaged(_ context.Context, req repository.PageRequest) (repository.PageResult[domain.User], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.User, 0, len(s.byID))
	for _, u := range s.byID {
		items = append(items, *u)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Email < items[j].Email })
	return repository.PageResult[domain.User]{
		Items:      items,
		Page:       req.Page,
		PageSize:   req.PageSize,
		Total:      int64(len(items)),
		TotalPages: 1,
	}, nil
}

func (s *memUserStore) SetRole(_ context.Context, id string, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Role = role
	return nil
}

func (s *memUserStore) ClearLockout(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	return nil
}

func (s *memUserStore) seed(email string, mutate func(u *domain.User)) *domain.User {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	u := &domain.User{
		ID:              uuid.NewString(),
		Email:           domain.CanonicalEmail(email),
		Name:            domain.EmailLocalPart(email),
		PasswordHash:    testPasswordHash(),
		Role:            domain.RoleUser,
		EmailVerifiedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if mutate != nil {
		mutate(u)
	}
	s.mu.Lock()
	s.byID[u.ID] = u
	s.mu.Unlock()
	return cloneUser(u)
}

func (s *memUserStore) get(id string) *domain.User {
	u, _ := s.FindByID(context.Background(), id)
	return u
}

type memAuditStore struct {
	mu        sync.Mutex
	entries   []domain.AuditLog
	createErr error
}

func (s *memAuditStore) Create(_ context.Context, entry *domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *memAuditStore) Restore(ctx context.Context, entry *domain.AuditLog) error {
	s.mu.Lock()
	for _, e := range s.entries {
		if entry.ID != "" && e.ID == entry.ID {
			s.mu.Unlock()
			return nil
		}
	}
	s.mu.Unlock()
	return s.Create(ctx, entry)
}

func (s *memAuditStore) List(_ context.Context, q repository.AuditLogQuery) ([]domain.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.AuditLog{}
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if q.Action != "" && e.Action != q.Action {
			continue
		}
		if q.UserID != "" && (e.UserID == nil || *e.UserID != q.UserID) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *memAuditStore) actions() []domain.AuditAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Action)
	}
	return out
}

func (s *memAuditStore) last() domain.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return domain.AuditLog{}
	}
	return s.entries[len(s.entries)-1]
}

func newUserRepoMock(ctrl *gomock.Controller, users *memUserStore) *repogomock.MockUserRepository {
	m := repogomock.NewMockUserRepository(ctrl)
	m.EXPECT().FindByID(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(users.FindByID)
	m.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(users.FindByEmail)
	m.EXPECT().FindPendingVerification(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(users.FindPendingVerification)
	m.EXPECT().Create(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(users.Create)
	m.EXPECT().DeleteByID(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(users.DeleteByID)
	m.EXPECT().RecordLoginFailure(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(users.RecordLoginFailure)
	m.EXPECT().RecordLoginSuccess(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(users.RecordLoginSuccess)
	m.EXPECT().MarkEmailVerified(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(users.MarkEmailVerified)
	m.EXPECT().ListPaged(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(users.ListPaged)
	m.EXPECT().SetRole(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(users.SetRole)
	m.EXPECT().ClearLockout(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(users.ClearLockout)
	return m
}

func newAuditRepoMock(ctrl *gomock.Controller, audits *memAuditStore) *repogomock.MockAuditLogRepository {
	m := repogomock.NewMockAuditLogRepository(ctrl)
	m.EXPECT().Create(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(audits.Create)
	m.EXPECT().Restore(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(audits.Restore)
	m.EXPECT().List(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(audits.List)
	return m
}

type tNop struct{}

func (tNop) Errorf(string, ...any) {}
func (tNop) Fatalf(string, ...any) {}
func (tNop) Helper()               {}
