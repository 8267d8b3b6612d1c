package ratelimit

import (
	"context"
	"time"
)

// Window is the counter state after a Take.
type Window struct {
	Count   int
	ResetAt time.Time
}

// Store performs the atomic check-then-increment for one key. A denied Take
// leaves the counter untouched.
type Store interface {
	Take(ctx context.Context, key string, quota int, window time.Duration, now time.Time) (Window, bool, error)
}
