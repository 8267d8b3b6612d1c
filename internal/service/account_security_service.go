package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/config"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/domain"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/observability"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/repository"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/security"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = observability.Tracer("github.com/reichmanjorgensen/legal-chat-auth/internal/service")

type AuthenticateInput struct {
	Email    string
	Password string
	RequestMeta
}

type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
	RequestMeta
}

type VerifyEmailInput struct {
	Email string
	Token string
	RequestMeta
}

// Identity is what a successful authentication yields.
type Identity struct {
	ID    string
	Email string
	Name  string
	Role  domain.Role
}

type Registration struct {
	UserID string
	Email  string
}

// AccountSecurityService owns credential checks, lockout accounting, the
// verification token lifecycle and the audit trail for all three.
type AccountSecurityService struct {
	cfg      *config.Config
	users    repository.UserRepository
	audit    *AuditRecorder
	notifier EmailVerificationNotifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewAccountSecurityService(
	cfg *config.Config,
	users repository.UserRepository,
	audit *AuditRecorder,
	notifier EmailVerificationNotifier,
	logger *slog.Logger,
) *AccountSecurityService {
	return &AccountSecurityService{
		cfg:      cfg,
		users:    users,
		audit:    audit,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *AccountSecurityService) domainAllowed(canonicalEmail string) bool {
	suffix := strings.ToLower(s.cfg.AuthAllowedEmailDomain)
	return len(canonicalEmail) > len(suffix) && strings.HasSuffix(canonicalEmail, suffix)
}

func (s *AccountSecurityService) Authenticate(ctx context.Context, in AuthenticateInput) (_ *Identity, err error) {
	ctx, span := tracer.Start(ctx, "AccountSecurity.Authenticate")
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	email := domain.CanonicalEmail(in.Email)
	if !s.domainAllowed(email) {
		observability.RecordAuthLogin(ctx, "domain_rejected")
		return nil, ErrDomainNotAllowed
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		entry := newAuditEntry(domain.AuditLoginFailed, nil, in.Email, in.RequestMeta, false)
		entry.ErrorMessage = "User not found"
		s.audit.Record(ctx, entry)
		observability.RecordAuthLogin(ctx, "invalid_credentials")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		observability.RecordAuthLogin(ctx, "error")
		return nil, internalError("find user", err)
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	now := s.now()
	if remaining, locked := user.LockedAt(now); locked {
		return nil, s.rejectLocked(ctx, user, in, remaining)
	}
	if !user.IsVerified() {
		entry := newAuditEntry(domain.AuditLoginUnverified, &user.ID, in.Email, in.RequestMeta, false)
		entry.ErrorMessage = "Email not verified"
		s.audit.Record(ctx, entry)
		observability.RecordAuthLogin(ctx, "unverified")
		return nil, ErrEmailNotVerified
	}

	ok, err := security.VerifyPassword(user.PasswordHash, in.Password)
	if err != nil {
		observability.RecordAuthLogin(ctx, "error")
		return nil, internalError("verify password", err)
	}
	if !ok {
		return nil, s.recordFailedAttempt(ctx, user, in, now)
	}

	out, err := s.users.RecordLoginSuccess(ctx, user.ID, in.IP, now)
	if err != nil {
		observability.RecordAuthLogin(ctx, "error")
		return nil, internalError("record login success", err)
	}
	if out.AlreadyLocked {
		return nil, s.rejectLocked(ctx, out.User, in, lockRemaining(out.LockedUntil, now))
	}

	s.audit.Record(ctx, newAuditEntry(domain.AuditLoginSuccess, &user.ID, in.Email, in.RequestMeta, true))
	observability.RecordAuthLogin(ctx, "success")
	return &Identity{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role}, nil
}

func (s *AccountSecurityService) recordFailedAttempt(ctx context.Context, user *domain.User, in AuthenticateInput, now time.Time) error {
	out, err := s.users.RecordLoginFailure(ctx, user.ID, s.cfg.AuthMaxLoginAttempts, s.cfg.AuthLockoutDuration, now)
	if err != nil {
		observability.RecordAuthLogin(ctx, "error")
		return internalError("record login failure", err)
	}
	if out.AlreadyLocked {
		return s.rejectLocked(ctx, out.User, in, lockRemaining(out.LockedUntil, now))
	}

	entry := newAuditEntry(domain.AuditLoginFailed, &user.ID, in.Email, in.RequestMeta, false)
	entry.ErrorMessage = "Invalid password"
	entry.Metadata = map[string]any{"failedAttempts": out.Attempts}
	if out.LockedUntil != nil {
		entry.Metadata["lockedUntil"] = out.LockedUntil.UTC().Format(time.RFC3339)
	}
	s.audit.Record(ctx, entry)

	if out.LockedUntil != nil {
		observability.RecordAuthLockout(ctx)
		observability.RecordAuthLogin(ctx, "locked_now")
		s.logger.WarnContext(ctx, "account locked", "user_id", user.ID, "attempts", out.Attempts, "locked_until", out.LockedUntil)
		return ErrAccountLockedNow
	}
	observability.RecordAuthLogin(ctx, "invalid_credentials")
	return ErrInvalidCredentials
}

func (s *AccountSecurityService) rejectLocked(ctx context.Context, user *domain.User, in AuthenticateInput, remaining time.Duration) error {
	entry := newAuditEntry(domain.AuditLoginLocked, &user.ID, in.Email, in.RequestMeta, false)
	entry.ErrorMessage = "Account locked"
	if user.LockedUntil != nil {
		entry.Metadata = map[string]any{"lockedUntil": user.LockedUntil.UTC().Format(time.RFC3339)}
	}
	s.audit.Record(ctx, entry)
	observability.RecordAuthLogin(ctx, "locked")
	return &LockedError{Remaining: remaining}
}

func lockRemaining(lockedUntil *time.Time, now time.Time) time.Duration {
	if lockedUntil == nil {
		return 0
	}
	return lockedUntil.Sub(now)
}

func (s *AccountSecurityService) Register(ctx context.Context, in RegisterInput) (_ *Registration, err error) {
	ctx, span := tracer.Start(ctx, "AccountSecurity.Register")
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	email := domain.CanonicalEmail(in.Email)
	if !s.domainAllowed(email) {
		observability.RecordAuthRegistration(ctx, "domain_rejected")
		return nil, ErrDomainNotAllowed
	}
	if err := validatePassword(in.Password); err != nil {
		observability.RecordAuthRegistration(ctx, "weak_password")
		return nil, err
	}
	if in.Password != in.ConfirmPassword {
		observability.RecordAuthRegistration(ctx, "password_mismatch")
		return nil, ErrPasswordMismatch
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		observability.RecordAuthRegistration(ctx, "duplicate")
		return nil, ErrDuplicateAccount
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, s.registrationFailed(ctx, in, internalError("find user", err))
	}

	token, tokenHash, err := security.NewVerificationToken()
	if err != nil {
		return nil, s.registrationFailed(ctx, in, internalError("generate token", err))
	}
	passwordHash, err := security.HashPassword(in.Password, s.cfg.AuthBcryptCost)
	if err != nil {
		return nil, s.registrationFailed(ctx, in, internalError("hash password", err))
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = domain.EmailLocalPart(email)
	}
	now := s.now()
	expires := now.Add(s.cfg.AuthVerifyTokenTTL)
	user := &domain.User{
		Email:                 email,
		Name:                  name,
		PasswordHash:          passwordHash,
		Role:                  domain.RoleUser,
		VerificationTokenHash: &tokenHash,
		VerificationExpiresAt: &expires,
		RegistrationIP:        orUnknown(in.IP),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			observability.RecordAuthRegistration(ctx, "duplicate")
			return nil, ErrDuplicateAccount
		}
		return nil, s.registrationFailed(ctx, in, internalError("create user", err))
	}

	notification := VerificationNotification{
		UserID:          user.ID,
		Email:           email,
		Name:            name,
		ExpiresAt:       expires,
		VerificationURL: s.verificationURL(email, token),
	}
	if err := s.notifier.SendEmailVerification(ctx, notification); err != nil {
		s.logger.ErrorContext(ctx, "verification delivery failed, removing account", "user_id", user.ID, "error", err)
		if delErr := s.users.DeleteByID(context.WithoutCancel(ctx), user.ID); delErr != nil {
			s.logger.ErrorContext(ctx, "compensating delete failed", "user_id", user.ID, "error", delErr)
		}
		return nil, s.registrationFailed(ctx, in, fmt.Errorf("%w: %v", ErrDeliveryFailed, err))
	}

	s.audit.Record(ctx, newAuditEntry(domain.AuditUserRegistration, &user.ID, in.Email, in.RequestMeta, true))
	observability.RecordAuthRegistration(ctx, "created")
	return &Registration{UserID: user.ID, Email: email}, nil
}

// registrationFailed writes the failed USER_REGISTRATION record and maps the
// cause to the generic error surfaced to callers.
func (s *AccountSecurityService) registrationFailed(ctx context.Context, in RegisterInput, cause error) error {
	entry := newAuditEntry(domain.AuditUserRegistration, nil, in.Email, in.RequestMeta, false)
	entry.ErrorMessage = cause.Error()
	s.audit.Record(ctx, entry)
	if errors.Is(cause, ErrDeliveryFailed) {
		observability.RecordAuthRegistration(ctx, "delivery_failed")
		return ErrDeliveryFailed
	}
	s.logger.ErrorContext(ctx, "registration failed", "error", cause)
	observability.RecordAuthRegistration(ctx, "error")
	return ErrInternal
}

func (s *AccountSecurityService) verificationURL(email, token string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	return strings.TrimRight(s.cfg.AuthVerifyBaseURL, "/") + "/api/auth/verify?" + q.Encode()
}

func (s *AccountSecurityService) VerifyEmail(ctx context.Context, in VerifyEmailInput) (err error) {
	ctx, span := tracer.Start(ctx, "AccountSecurity.VerifyEmail")
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	email := domain.CanonicalEmail(in.Email)
	token := strings.TrimSpace(in.Token)
	if email == "" || token == "" {
		observability.RecordAuthVerification(ctx, "invalid")
		return ErrInvalidOrExpiredToken
	}

	now := s.now()
	tokenHash := security.HashVerificationToken(token)
	user, err := s.users.FindPendingVerification(ctx, email, tokenHash, now)
	if errors.Is(err, repository.ErrVerificationNotFound) {
		observability.RecordAuthVerification(ctx, "invalid")
		return ErrInvalidOrExpiredToken
	}
	if err != nil {
		observability.RecordAuthVerification(ctx, "error")
		return internalError("find pending verification", err)
	}

	if err := s.users.MarkEmailVerified(ctx, user.ID, tokenHash, now); err != nil {
		if errors.Is(err, repository.ErrVerificationNotFound) {
			observability.RecordAuthVerification(ctx, "replayed")
			return ErrInvalidOrExpiredToken
		}
		observability.RecordAuthVerification(ctx, "error")
		return internalError("mark email verified", err)
	}

	s.audit.Record(ctx, newAuditEntry(domain.AuditEmailVerification, &user.ID, user.Email, in.RequestMeta, true))
	observability.RecordAuthVerification(ctx, "verified")
	return nil
}
