package repository

//go:generate mockgen -source=user_repository.go -destination=gomock/mock_user_repository.go -package=gomock

import (
	"context"
	"errors"
	"time"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoginOutcome is the user state after a login bookkeeping transaction.
// AlreadyLocked means another attempt locked the row first and nothing was written.
type LoginOutcome struct {
	User          *domain.User
	Attempts      int
	LockedUntil   *time.Time
	AlreadyLocked bool
}

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindPendingVerification(ctx context.Context, email, tokenHash string, now time.Time) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	DeleteByID(ctx context.Context, id string) error
	RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockout time.Duration, now time.Time) (*LoginOutcome, error)
	RecordLoginSuccess(ctx context.Context, id, ip string, now time.Time) (*LoginOutcome, error)
	MarkEmailVerified(ctx context.Context, id, tokenHash string, now time.Time) error
	ListPaged(ctx context.Context, req PageRequest) (PageResult[domain.User], error)
	SetRole(ctx context.Context, id string, role domain.Role) error
	ClearLockout(ctx context.Context, id string) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, mapUserErr(err)
	}
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).Where("email = ?", domain.CanonicalEmail(email)).First(&u).Error; err != nil {
		return nil, mapUserErr(err)
	}
	return &u, nil
}

func (r *GormUserRepository) FindPendingVerification(ctx context.Context, email, tokenHash string, now time.Time) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).
		Where("email = ? AND verification_token_hash = ? AND verification_expires_at > ? AND email_verified_at IS NULL",
			domain.CanonicalEmail(email), tokenHash, now.UTC()).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVerificationNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) (err error) {
	defer func() { recordOperation(ctx, "user", "create", err) }()
	if err = r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintErr(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *GormUserRepository) DeleteByID(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *GormUserRepository) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockout time.Duration, now time.Time) (*LoginOutcome, error) {
	now = now.UTC()
	var out LoginOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := lockUserRow(tx, id)
		if err != nil {
			return err
		}
		if _, locked := u.LockedAt(now); locked {
			out = LoginOutcome{User: u, Attempts: u.FailedLoginAttempts, LockedUntil: u.LockedUntil, AlreadyLocked: true}
			return nil
		}

		attempts := u.FailedLoginAttempts + 1
		var lockedUntil *time.Time
		if attempts >= maxAttempts {
			until := now.Add(lockout)
			lockedUntil = &until
		}
		if err := tx.Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
			"failed_login_attempts": attempts,
			"locked_until":          lockedUntil,
			"updated_at":            now,
		}).Error; err != nil {
			return err
		}
		u.FailedLoginAttempts = attempts
		u.LockedUntil = lockedUntil
		out = LoginOutcome{User: u, Attempts: attempts, LockedUntil: lockedUntil}
		return nil
	})
	recordOperation(ctx, "user", "record_login_failure", err)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *GormUserRepository) RecordLoginSuccess(ctx context.Context, id, ip string, now time.Time) (*LoginOutcome, error) {
	now = now.UTC()
	var out LoginOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := lockUserRow(tx, id)
		if err != nil {
			return err
		}
		if _, locked := u.LockedAt(now); locked {
			out = LoginOutcome{User: u, Attempts: u.FailedLoginAttempts, LockedUntil: u.LockedUntil, AlreadyLocked: true}
			return nil
		}
		if err := tx.Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
			"failed_login_attempts": 0,
			"locked_until":          nil,
			"last_login_at":         now,
			"last_login_ip":         ip,
			"updated_at":            now,
		}).Error; err != nil {
			return err
		}
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
		u.LastLoginAt = &now
		u.LastLoginIP = ip
		out = LoginOutcome{User: u}
		return nil
	})
	recordOperation(ctx, "user", "record_login_success", err)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkEmailVerified consumes the token. A second call with the same token
// affects no rows and reports ErrVerificationNotFound.
func (r *GormUserRepository) MarkEmailVerified(ctx context.Context, id, tokenHash string, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND verification_token_hash = ? AND email_verified_at IS NULL", id, tokenHash).
		Updates(map[string]any{
			"email_verified_at":       now.UTC(),
			"verification_token_hash": nil,
			"verification_expires_at": nil,
			"updated_at":              now.UTC(),
		})
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		err = ErrVerificationNotFound
	}
	recordOperation(ctx, "user", "mark_email_verified", err)
	return err
}

func (r *GormUserRepository) ListPaged(ctx context.Context, req PageRequest) (PageResult[domain.User], error) {
	req = normalizePageRequest(req)
	q := r.db.WithContext(ctx).Model(&domain.User{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return PageResult[domain.User]{}, err
	}
	var users []domain.User
	if err := q.Order("created_at DESC").Order("id DESC").
		Offset((req.Page - 1) * req.PageSize).
		Limit(req.PageSize).
		Find(&users).Error; err != nil {
		return PageResult[domain.User]{}, err
	}
	return PageResult[domain.User]{
		Items:      users,
		Page:       req.Page,
		PageSize:   req.PageSize,
		Total:      total,
		TotalPages: calcTotalPages(total, req.PageSize),
	}, nil
}

func (r *GormUserRepository) SetRole(ctx context.Context, id string, role domain.Role) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"role":       role,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *GormUserRepository) ClearLockout(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"updated_at":            time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// lockUserRow serializes concurrent login bookkeeping for one user. SQLite has
// no row locks and already serializes writers, so the clause is postgres-only.
func lockUserRow(tx *gorm.DB, id string) (*domain.User, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var u domain.User
	if err := q.Where("id = ?", id).First(&u).Error; err != nil {
		return nil, mapUserErr(err)
	}
	return &u, nil
}

func mapUserErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}
