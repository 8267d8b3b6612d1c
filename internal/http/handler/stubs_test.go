package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/config"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/domain"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/middleware"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/repository"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/security"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/service"
)

type errorEnvelope struct {
	Success bool `json:"success"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type stubAccountSvc struct {
	authenticateFn func(ctx context.Context, in service.AuthenticateInput) (*service.Identity, error)
	registerFn     func(ctx context.Context, in service.RegisterInput) (*service.Registration, error)
	verifyFn       func(ctx context.Context, in service.VerifyEmailInput) error
}

func (s *stubAccountSvc) Authenticate(ctx context.Context, in service.AuthenticateInput) (*service.Identity, error) {
	if s.authenticateFn != nil {
		return s.authenticateFn(ctx, in)
	}
	return nil, errors.New("not implemented")
}

func (s *stubAccountSvc) Register(ctx context.Context, in service.RegisterInput) (*service.Registration, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, in)
	}
	return nil, errors.New("not implemented")
}

func (s *stubAccountSvc) VerifyEmail(ctx context.Context, in service.VerifyEmailInput) error {
	if s.verifyFn != nil {
		return s.verifyFn(ctx, in)
	}
	return errors.New("not implemented")
}

type stubUserSvc struct {
	getByIDFn   func(ctx context.Context, id string) (*domain.User, error)
	listFn      func(ctx context.Context, req repository.PageRequest) (repository.PageResult[domain.User], error)
	listAuditFn func(ctx context.Context, q repository.AuditLogQuery) ([]domain.AuditLog, error)
}

func (s *stubUserSvc) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, service.ErrUserNotFound
}

func (s *stubUserSvc) RequireAdmin(ctx context.Context, id string) (*domain.User, error) {
	return nil, service.ErrNotAdmin
}

func (s *stubUserSvc) List(ctx context.Context, req repository.PageRequest) (repository.PageResult[domain.User], error) {
	if s.listFn != nil {
		return s.listFn(ctx, req)
	}
	return repository.PageResult[domain.User]{}, nil
}

func (s *stubUserSvc) ListAuditLogs(ctx context.Context, q repository.AuditLogQuery) ([]domain.AuditLog, error) {
	if s.listAuditFn != nil {
		return s.listAuditFn(ctx, q)
	}
	return nil, nil
}

func handlerTestConfig() *config.Config {
	return &config.Config{
		AuthAllowedEmailDomain: "@reichmanjorgensen.com",
		AuthLockoutDuration:    30 * time.Minute,
		AuthSignInRedirectURL:  "https://chat.example.test/auth/signin",
	}
}

func withClaims(r *http.Request, sub string, expires time.Time) *http.Request {
	claims := &security.SessionClaims{}
	claims.Subject = sub
	claims.ExpiresAt = jwt.NewNumericDate(expires)
	ctx := context.WithValue(r.Context(), middleware.ClaimsContextKey, claims)
	return r.WithContext(ctx)
}
