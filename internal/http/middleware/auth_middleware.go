package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/domain"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/response"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/observability"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/security"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/service"
)

type contextKey string

const (
	ClaimsContextKey contextKey = "claims"
	AdminContextKey  contextKey = "admin"
)

// SessionAuth requires a valid session cookie and stores its claims in the
// request context.
func SessionAuth(sessions *security.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := security.GetCookie(r, security.SessionCookieName)
			if raw == "" {
				observability.RecordSessionValidation(r.Context(), "missing")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
				return
			}
			claims, err := sessions.Parse(raw)
			if err != nil {
				observability.RecordSessionValidation(r.Context(), "invalid")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
				return
			}
			observability.RecordSessionValidation(r.Context(), "valid")
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.SessionClaims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.SessionClaims)
	return c, ok
}

// RequireAdmin must run after SessionAuth. The role in the token is ignored;
// the stored role decides.
func RequireAdmin(users service.UserServiceInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
				return
			}
			admin, err := users.RequireAdmin(r.Context(), claims.Subject)
			switch {
			case err == nil:
			case errors.Is(err, service.ErrUserNotFound):
				observability.Audit(r, "admin.access.denied", "user_id", claims.Subject, "reason", "user_not_found")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
				return
			case errors.Is(err, service.ErrNotAdmin):
				observability.Audit(r, "admin.access.denied", "user_id", claims.Subject, "reason", "not_admin")
				response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "Admin access required", nil)
				return
			default:
				response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "Internal server error", nil)
				return
			}
			ctx := context.WithValue(r.Context(), AdminContextKey, admin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AdminFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(AdminContextKey).(*domain.User)
	return u, ok
}
