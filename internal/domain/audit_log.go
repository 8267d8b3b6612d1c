package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditAction string

const (
	AuditUserRegistration  AuditAction = "USER_REGISTRATION"
	AuditLoginSuccess      AuditAction = "LOGIN_SUCCESS"
	AuditLoginFailed       AuditAction = "LOGIN_FAILED"
	AuditLoginLocked       AuditAction = "LOGIN_LOCKED"
	AuditLoginUnverified   AuditAction = "LOGIN_UNVERIFIED"
	AuditEmailVerification AuditAction = "EMAIL_VERIFICATION"
	AuditAdminPromotion    AuditAction = "ADMIN_PROMOTION"
	AuditAccountUnlock     AuditAction = "ACCOUNT_UNLOCK"
)

var ErrAuditLogImmutable = errors.New("audit log entries are immutable")

// AuditLog is append-only; update and delete hooks refuse to run.
type AuditLog struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	Action       AuditAction    `gorm:"size:64;not null;index:idx_audit_logs_action" json:"action"`
	UserID       *string        `gorm:"size:36;index:idx_audit_logs_user_id" json:"user_id"`
	Email        string         `gorm:"size:255" json:"email"`
	IPAddress    string         `gorm:"size:64" json:"ip_address"`
	UserAgent    string         `gorm:"size:512" json:"user_agent"`
	Success      bool           `gorm:"not null" json:"success"`
	ErrorMessage string         `gorm:"size:1024" json:"error_message,omitempty"`
	Metadata     map[string]any `gorm:"type:text;serializer:json" json:"metadata,omitempty"`
	CreatedAt    time.Time      `gorm:"index:idx_audit_logs_created_at" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

func (a *AuditLog) BeforeUpdate(*gorm.DB) error { return ErrAuditLogImmutable }

func (a *AuditLog) BeforeDelete(*gorm.DB) error { return ErrAuditLogImmutable }
