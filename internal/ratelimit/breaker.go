package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type breakerEntry struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// DenialBreaker tracks how often each client is denied. Every store denial
// spends one token; a client with an empty bucket is rejected without
// touching the store until the bucket refills.
type DenialBreaker struct {
	mu      sync.Mutex
	clients map[string]*breakerEntry
	refill  rate.Limit
	burst   int
}

// NewDenialBreaker returns nil when either setting is not positive; a nil
// breaker never trips.
func NewDenialBreaker(refillPerSecond float64, burst int) *DenialBreaker {
	if burst <= 0 || refillPerSecond <= 0 {
		return nil
	}
	return &DenialBreaker{
		clients: make(map[string]*breakerEntry),
		refill:  rate.Limit(refillPerSecond),
		burst:   burst,
	}
}

// Open reports whether clientID is currently shut out and for how long.
func (b *DenialBreaker) Open(clientID string, now time.Time) (time.Duration, bool) {
	if b == nil {
		return 0, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.clients[clientID]
	if !ok {
		return 0, false
	}
	tokens := e.bucket.TokensAt(now)
	if tokens >= 1 {
		return 0, false
	}
	wait := time.Duration((1 - tokens) / float64(b.refill) * float64(time.Second))
	return wait, true
}

func (b *DenialBreaker) RecordDenial(clientID string, now time.Time) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.clients[clientID]
	if !ok {
		e = &breakerEntry{bucket: rate.NewLimiter(b.refill, b.burst)}
		b.clients[clientID] = e
	}
	e.lastSeen = now
	e.bucket.AllowN(now, 1)
}

// Sweep forgets clients whose last denial is older than idle.
func (b *DenialBreaker) Sweep(now time.Time, idle time.Duration) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for id, e := range b.clients {
		if now.Sub(e.lastSeen) > idle {
			delete(b.clients, id)
			removed++
		}
	}
	return removed
}
