package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/response"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/observability"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/ratelimit"
)

type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

const rateLimitedMessage = "Too many requests. Please try again later."

type RateLimiter struct {
	limiter *ratelimit.Limiter
	// failClosed lists route prefixes that reject requests when the store
	// is unavailable.
	failClosed []string
	backend    string
}

func NewRateLimiter(limiter *ratelimit.Limiter, backend string, failClosedPrefixes ...string) *RateLimiter {
	return &RateLimiter{limiter: limiter, failClosed: failClosedPrefixes, backend: backend}
}

func (rl *RateLimiter) modeFor(path string) FailureMode {
	for _, p := range rl.failClosed {
		if strings.HasPrefix(path, p) {
			return FailClosed
		}
	}
	return FailOpen
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			path := r.URL.Path
			d, err := rl.limiter.Check(ctx, ClientIP(r), path)
			if err != nil {
				mode := rl.modeFor(path)
				observability.RecordRateLimitDecision(ctx, d.Scope, "error", string(mode))
				if mode == FailOpen {
					slog.WarnContext(ctx, "rate limiter backend unavailable, allowing request",
						"scope", d.Scope,
						"mode", string(mode),
						"error", err.Error(),
					)
					next.ServeHTTP(w, r)
					return
				}
				slog.ErrorContext(ctx, "rate limiter backend unavailable, rejecting request",
					"scope", d.Scope,
					"mode", string(mode),
					"error", err.Error(),
				)
				window := rl.limiter.Policy().Window
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", rateLimitedMessage,
					map[string]int{"retry_after": int(window.Seconds())})
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.ResetAt.IsZero() {
				h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.UnixMilli(), 10))
			}
			if !d.Allowed {
				outcome := "deny"
				if d.Breaker {
					outcome = "breaker"
				}
				observability.RecordRateLimitDecision(ctx, d.Scope, outcome, rl.backend)
				observability.RecordRateLimitRetryAfter(ctx, d.Scope, d.RetryAfter)
				retryAfter := d.RetryAfterSeconds()
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", rateLimitedMessage,
					map[string]int{"retry_after": retryAfter})
				return
			}
			observability.RecordRateLimitDecision(ctx, d.Scope, "allow", rl.backend)
			next.ServeHTTP(w, r)
		})
	}
}
