package service

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	PasswordMinLength = 8
	// PasswordMaxBytes is the longest input bcrypt hashes without error.
	PasswordMaxBytes = 72
)

var (
	uppercaseRe = regexp.MustCompile(`[A-Z]`)
	lowercaseRe = regexp.MustCompile(`[a-z]`)
	digitRe     = regexp.MustCompile(`[0-9]`)
	specialRe   = regexp.MustCompile(`[@$!%*?&]`)
	leadingRe   = regexp.MustCompile(`^[A-Za-z0-9@$!%*?&]`)
)

// PasswordPolicyError lists every unmet requirement and matches ErrWeakPassword.
type PasswordPolicyError struct {
	Missing []string
}

func (e *PasswordPolicyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrWeakPassword, strings.Join(e.Missing, ", "))
}

func (e *PasswordPolicyError) Unwrap() error { return ErrWeakPassword }

func validatePassword(password string) error {
	var missing []string
	if len(password) < PasswordMinLength {
		missing = append(missing, fmt.Sprintf("at least %d characters", PasswordMinLength))
	}
	if len(password) > PasswordMaxBytes {
		missing = append(missing, fmt.Sprintf("at most %d bytes", PasswordMaxBytes))
	}
	if password != "" && !leadingRe.MatchString(password) {
		missing = append(missing, "start with a letter, number or one of @$!%*?&")
	}
	checks := []struct {
		re   *regexp.Regexp
		desc string
	}{
		{lowercaseRe, "a lowercase letter"},
		{uppercaseRe, "an uppercase letter"},
		{digitRe, "a number"},
		{specialRe, "a special character (@$!%*?&)"},
	}
	for _, c := range checks {
		if !c.re.MatchString(password) {
			missing = append(missing, c.desc)
		}
	}
	if len(missing) > 0 {
		return &PasswordPolicyError{Missing: missing}
	}
	return nil
}
