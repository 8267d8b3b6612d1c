package repository

//go:generate mockgen -source=audit_log_repository.go -destination=gomock/mock_audit_log_repository.go -package=gomock

import (
	"context"
	"fmt"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AuditLogQuery struct {
	Action domain.AuditAction
	UserID string
	Limit  int
}

// AuditLogRepository only appends and reads.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	// Restore writes a record that may already have been committed once.
	// An existing row with the same ID is left as is.
	Restore(ctx context.Context, entry *domain.AuditLog) error
	List(ctx context.Context, q AuditLogQuery) ([]domain.AuditLog, error)
}

type GormAuditLogRepository struct{ db *gorm.DB }

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

func (r *GormAuditLogRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	err := r.db.WithContext(ctx).Create(entry).Error
	recordOperation(ctx, "audit_log", "create", err)
	return err
}

func (r *GormAuditLogRepository) Restore(ctx context.Context, entry *domain.AuditLog) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(entry).Error
	recordOperation(ctx, "audit_log", "restore", err)
	if isPermanentWriteErr(err) {
		return fmt.Errorf("%w: %v", ErrAuditRecordRejected, err)
	}
	return err
}

func (r *GormAuditLogRepository) List(ctx context.Context, q AuditLogQuery) ([]domain.AuditLog, error) {
	tx := r.db.WithContext(ctx).Model(&domain.AuditLog{})
	if q.Action != "" {
		tx = tx.Where("action = ?", q.Action)
	}
	if q.UserID != "" {
		tx = tx.Where("user_id = ?", q.UserID)
	}
	var out []domain.AuditLog
	err := tx.Order("created_at DESC").Order("id DESC").Limit(normalizeAuditLimit(q.Limit)).Find(&out).Error
	return out, err
}
