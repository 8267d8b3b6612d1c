package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID                    string     `gorm:"primaryKey;size:36" json:"id"`
	Email                 string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name                  string     `gorm:"size:255;not null" json:"name"`
	PasswordHash          string     `gorm:"size:255;not null" json:"-"`
	Role                  Role       `gorm:"size:32;not null;default:user;index:idx_users_role" json:"role"`
	EmailVerifiedAt       *time.Time `json:"email_verified_at"`
	VerificationTokenHash *string    `gorm:"size:64;index:idx_users_verification_token" json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	FailedLoginAttempts   int        `gorm:"not null;default:0" json:"failed_login_attempts"`
	LockedUntil           *time.Time `json:"locked_until"`
	LastLoginAt           *time.Time `json:"last_login_at"`
	LastLoginIP           string     `gorm:"size:64" json:"last_login_ip"`
	RegistrationIP        string     `gorm:"size:64" json:"registration_ip"`
	CreatedAt             time.Time  `gorm:"index:idx_users_created_at" json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = CanonicalEmail(u.Email)
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

func (u *User) IsVerified() bool {
	return u.EmailVerifiedAt != nil
}

// LockedAt reports whether the account is locked at now and for how long.
func (u *User) LockedAt(now time.Time) (time.Duration, bool) {
	if u.LockedUntil == nil || !u.LockedUntil.After(now) {
		return 0, false
	}
	return u.LockedUntil.Sub(now), true
}

// CanonicalEmail is the form used for every comparison and for storage.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailLocalPart returns everything before the last "@".
func EmailLocalPart(email string) string {
	if i := strings.LastIndex(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
