package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/config"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/domain"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/repository"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/security"
)

type CreateAdminInput struct {
	Email    string
	Name     string
	Password string
	Actor    string
}

// UserService backs the admin API and the admin CLI.
type UserService struct {
	cfg    *config.Config
	users  repository.UserRepository
	audits repository.AuditLogRepository
	audit  *AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

func NewUserService(
	cfg *config.Config,
	users repository.UserRepository,
	audits repository.AuditLogRepository,
	audit *AuditRecorder,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		cfg:    cfg,
		users:  users,
		audits: audits,
		audit:  audit,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, internalError("find user", err)
	}
	return u, nil
}

// RequireAdmin reads the role from the store so a demotion takes effect
// before the session expires.
func (s *UserService) RequireAdmin(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != domain.RoleAdmin {
		return nil, ErrNotAdmin
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, req repository.PageRequest) (repository.PageResult[domain.User], error) {
	res, err := s.users.ListPaged(ctx, req)
	if err != nil {
		return repository.PageResult[domain.User]{}, internalError("list users", err)
	}
	return res, nil
}

func (s *UserService) ListAuditLogs(ctx context.Context, q repository.AuditLogQuery) ([]domain.AuditLog, error) {
	logs, err := s.audits.List(ctx, q)
	if err != nil {
		return nil, internalError("list audit logs", err)
	}
	return logs, nil
}

// CreateAdmin promotes an existing account or creates a verified admin. The
// bool result reports whether a new account was created.
func (s *UserService) CreateAdmin(ctx context.Context, in CreateAdminInput) (*domain.User, bool, error) {
	email := domain.CanonicalEmail(in.Email)
	suffix := s.cfg.AuthAllowedEmailDomain
	if len(email) <= len(suffix) || !strings.HasSuffix(email, suffix) {
		return nil, false, ErrDomainNotAllowed
	}

	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.promote(ctx, existing, in.Actor); err != nil {
			return nil, false, err
		}
		existing.Role = domain.RoleAdmin
		return existing, false, nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, false, internalError("find user", err)
	}

	if err := validatePassword(in.Password); err != nil {
		return nil, false, err
	}
	hash, err := security.HashPassword(in.Password, s.cfg.AuthBcryptCost)
	if err != nil {
		return nil, false, internalError("hash password", err)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = domain.EmailLocalPart(email)
	}
	now := s.now()
	user := &domain.User{
		Email:           email,
		Name:            name,
		PasswordHash:    hash,
		Role:            domain.RoleAdmin,
		EmailVerifiedAt: &now,
		RegistrationIP:  "cli",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, false, ErrDuplicateAccount
		}
		return nil, false, internalError("create admin", err)
	}
	entry := newAuditEntry(domain.AuditAdminPromotion, &user.ID, email, RequestMeta{IP: "cli", UserAgent: in.Actor}, true)
	entry.Metadata = map[string]any{"created": true}
	s.audit.Record(ctx, entry)
	return user, true, nil
}

// PromoteExisting grants the admin role to an account that already exists.
func (s *UserService) PromoteExisting(ctx context.Context, email, actor string) (*domain.User, error) {
	u, err := s.users.FindByEmail(ctx, domain.CanonicalEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, internalError("find user", err)
	}
	if u.Role == domain.RoleAdmin {
		return u, nil
	}
	if err := s.promote(ctx, u, actor); err != nil {
		return nil, err
	}
	u.Role = domain.RoleAdmin
	return u, nil
}

func (s *UserService) promote(ctx context.Context, u *domain.User, actor string) error {
	if err := s.users.SetRole(ctx, u.ID, domain.RoleAdmin); err != nil {
		return internalError("set role", err)
	}
	entry := newAuditEntry(domain.AuditAdminPromotion, &u.ID, u.Email, RequestMeta{IP: "cli", UserAgent: actor}, true)
	entry.Metadata = map[string]any{"previousRole": string(u.Role)}
	s.audit.Record(ctx, entry)
	s.logger.InfoContext(ctx, "user promoted to admin", "user_id", u.ID, "actor", actor)
	return nil
}

// Unlock clears the failure counter and any active lock.
func (s *UserService) Unlock(ctx context.Context, email, actor string) (*domain.User, error) {
	u, err := s.users.FindByEmail(ctx, domain.CanonicalEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, internalError("find user", err)
	}
	if err := s.users.ClearLockout(ctx, u.ID); err != nil {
		return nil, internalError("clear lockout", err)
	}
	entry := newAuditEntry(domain.AuditAccountUnlock, &u.ID, u.Email, RequestMeta{IP: "cli", UserAgent: actor}, true)
	entry.Metadata = map[string]any{"failedAttempts": u.FailedLoginAttempts}
	s.audit.Record(ctx, entry)
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	return u, nil
}
