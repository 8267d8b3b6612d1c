package repository

import (
	"errors"
	"strings"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrVerificationNotFound = errors.New("verification token not found")
	// ErrAuditRecordRejected marks a record the store will never accept, so
	// retrying it is pointless.
	ErrAuditRecordRejected = errors.New("audit record rejected")
)

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "unique violation")
}

// isPermanentWriteErr reports constraint and type errors that no retry can fix.
func isPermanentWriteErr(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, marker := range []string{"constraint", "violates", "value too long", "invalid input", "datatype mismatch"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
