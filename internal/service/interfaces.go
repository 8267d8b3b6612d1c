package service

import (
	"context"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/domain"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/repository"
)

type AccountSecurityServiceInterface interface {
	Authenticate(ctx context.Context, in AuthenticateInput) (*Identity, error)
	Register(ctx context.Context, in RegisterInput) (*Registration, error)
	VerifyEmail(ctx context.Context, in VerifyEmailInput) error
}

type UserServiceInterface interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	RequireAdmin(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, req repository.PageRequest) (repository.PageResult[domain.User], error)
	ListAuditLogs(ctx context.Context, q repository.AuditLogQuery) ([]domain.AuditLog, error)
}

var (
	_ AccountSecurityServiceInterface = (*AccountSecurityService)(nil)
	_ UserServiceInterface            = (*UserService)(nil)
)
