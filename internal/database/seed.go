package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/domain"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/observability"
)

// MarkEmailVerified is a local development shortcut for environments that
// use the log notifier. It clears any pending verification token.
func MarkEmailVerified(ctx context.Context, db *gorm.DB, email string) error {
	canonical := domain.CanonicalEmail(email)
	if canonical == "" {
		return fmt.Errorf("email is required")
	}
	now := time.Now().UTC()
	tx := db.WithContext(ctx).Model(&domain.User{}).
		Where("email = ?", canonical).
		Updates(map[string]any{
			"email_verified_at":       gorm.Expr("COALESCE(email_verified_at, ?)", now),
			"verification_token_hash": nil,
			"verification_expires_at": nil,
		})
	if tx.Error != nil {
		observability.RecordDatabaseStartupEvent(ctx, "seed", "error")
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	observability.RecordDatabaseStartupEvent(ctx, "seed", "success")
	return nil
}

type Counts struct {
	Users        int64 `json:"users"`
	Admins       int64 `json:"admins"`
	Unverified   int64 `json:"unverified"`
	Locked       int64 `json:"locked"`
	AuditEntries int64 `json:"audit_entries"`
}

// Summarize counts rows for the status tooling.
func Summarize(ctx context.Context, db *gorm.DB, now time.Time) (Counts, error) {
	var c Counts
	q := db.WithContext(ctx)
	err := errors.Join(
		q.Model(&domain.User{}).Count(&c.Users).Error,
		q.Model(&domain.User{}).Where("role = ?", domain.RoleAdmin).Count(&c.Admins).Error,
		q.Model(&domain.User{}).Where("email_verified_at IS NULL").Count(&c.Unverified).Error,
		q.Model(&domain.User{}).Where("locked_until > ?", now).Count(&c.Locked).Error,
		q.Model(&domain.AuditLog{}).Count(&c.AuditEntries).Error,
	)
	return c, err
}
