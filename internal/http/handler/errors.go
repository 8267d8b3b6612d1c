package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/response"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/service"
)

// writeServiceError maps account errors to responses. Messages never reveal
// whether an email is registered, except for the duplicate check on
// registration.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, allowedDomain string, lockout time.Duration) {
	var locked *service.LockedError
	var policy *service.PasswordPolicyError
	switch {
	case errors.As(err, &locked):
		mins := locked.RemainingMinutes()
		w.Header().Set("Retry-After", fmt.Sprintf("%d", mins*60))
		response.Error(w, r, http.StatusLocked, "ACCOUNT_LOCKED",
			fmt.Sprintf("Account locked. Try again in %d minutes", mins),
			map[string]int{"retry_after_minutes": mins})
	case errors.Is(err, service.ErrAccountLockedNow):
		mins := (&service.LockedError{Remaining: lockout}).RemainingMinutes()
		response.Error(w, r, http.StatusLocked, "ACCOUNT_LOCKED",
			fmt.Sprintf("Too many failed attempts. Account locked for %d minutes", mins),
			map[string]int{"retry_after_minutes": mins})
	case errors.Is(err, service.ErrDomainNotAllowed):
		response.Error(w, r, http.StatusForbidden, "DOMAIN_NOT_ALLOWED",
			fmt.Sprintf("Only %s email addresses are allowed", allowedDomain), nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	case errors.Is(err, service.ErrEmailNotVerified):
		response.Error(w, r, http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Please verify your email before signing in", nil)
	case errors.Is(err, service.ErrDuplicateAccount):
		response.Error(w, r, http.StatusConflict, "ACCOUNT_EXISTS", "An account with this email already exists", nil)
	case errors.As(err, &policy):
		response.Error(w, r, http.StatusBadRequest, "WEAK_PASSWORD", "Password does not meet requirements",
			map[string][]string{"missing": policy.Missing})
	case errors.Is(err, service.ErrWeakPassword):
		response.Error(w, r, http.StatusBadRequest, "WEAK_PASSWORD", "Password does not meet requirements", nil)
	case errors.Is(err, service.ErrPasswordMismatch):
		response.Error(w, r, http.StatusBadRequest, "PASSWORD_MISMATCH", "Passwords do not match", nil)
	case errors.Is(err, service.ErrInvalidOrExpiredToken):
		response.Error(w, r, http.StatusBadRequest, "INVALID_TOKEN", "Invalid or expired verification link", nil)
	case errors.Is(err, service.ErrDeliveryFailed):
		response.Error(w, r, http.StatusBadGateway, "DELIVERY_FAILED", "Could not send verification email. Please try again later", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "Internal server error", nil)
	}
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, service.ErrInternal), errors.Is(err, service.ErrDeliveryFailed):
		return "error"
	default:
		return "rejected"
	}
}
