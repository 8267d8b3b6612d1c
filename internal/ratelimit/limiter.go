package ratelimit

import (
	"context"
	"math"
	"time"
)

// Decision is the outcome of one Check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	// Scope is the matched route prefix, or "default".
	Scope string
	// Breaker is set when the denial breaker rejected the request before the
	// store was consulted.
	Breaker bool
}

// RetryAfterSeconds rounds up and never reports less than one second for a
// denial.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	s := int(math.Ceil(d.RetryAfter.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

type Limiter struct {
	policy  Policy
	store   Store
	breaker *DenialBreaker
	now     func() time.Time
}

type Option func(*Limiter)

func WithBreaker(b *DenialBreaker) Option {
	return func(l *Limiter) { l.breaker = b }
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(policy Policy, store Store, opts ...Option) *Limiter {
	l := &Limiter{
		policy: policy,
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Policy() Policy { return l.policy }

// Check counts one request from clientID against the quota for routeKey.
// On a store error the returned decision carries the quota but the caller
// decides whether to admit the request.
func (l *Limiter) Check(ctx context.Context, clientID, routeKey string) (Decision, error) {
	quota, prefix := l.policy.Match(routeKey)
	scope := prefix
	if scope == "" {
		scope = "default"
	}
	now := l.now()
	d := Decision{Limit: quota, Scope: scope}

	if wait, open := l.breaker.Open(clientID, now); open {
		d.Breaker = true
		d.ResetAt = now.Add(wait)
		d.RetryAfter = wait
		return d, nil
	}

	w, allowed, err := l.store.Take(ctx, clientID+":"+routeKey, quota, l.policy.Window, now)
	if err != nil {
		return d, err
	}
	d.Allowed = allowed
	d.ResetAt = w.ResetAt
	d.Remaining = max(quota-w.Count, 0)
	if !allowed {
		d.RetryAfter = max(w.ResetAt.Sub(now), 0)
		l.breaker.RecordDenial(clientID, now)
	}
	return d, nil
}
