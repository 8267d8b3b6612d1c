package service

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrDomainNotAllowed      = errors.New("email domain not allowed")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountLocked         = errors.New("account locked")
	ErrAccountLockedNow      = errors.New("account locked after too many failed attempts")
	ErrEmailNotVerified      = errors.New("email not verified")
	ErrDuplicateAccount      = errors.New("account already exists")
	ErrWeakPassword          = errors.New("password does not meet policy requirements")
	ErrPasswordMismatch      = errors.New("passwords do not match")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired verification token")
	ErrDeliveryFailed        = errors.New("verification email delivery failed")
	ErrInternal              = errors.New("internal error")
	ErrNotAdmin              = errors.New("admin role required")
	ErrUserNotFound          = errors.New("user not found")
)

// LockedError is returned for attempts against a locked account. It matches
// ErrAccountLocked with errors.Is.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d minutes", e.RemainingMinutes())
}

func (e *LockedError) Is(target error) bool { return target == ErrAccountLocked }

// RemainingMinutes rounds up so a user is never told "0 minutes".
func (e *LockedError) RemainingMinutes() int {
	m := int(math.Ceil(e.Remaining.Minutes()))
	if m < 1 {
		return 1
	}
	return m
}

func internalError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}
