package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps counters for the life of the process. It is not shared
// across instances.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	window   time.Duration
}

func NewMemoryStore(window time.Duration) *MemoryStore {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryStore{counters: make(map[string]*counter), window: window}
}

func (s *MemoryStore) Take(_ context.Context, key string, quota int, window time.Duration, now time.Time) (Window, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || now.After(c.resetAt) {
		c = &counter{count: 1, resetAt: now.Add(window)}
		s.counters[key] = c
		return Window{Count: 1, ResetAt: c.resetAt}, true, nil
	}
	if c.count >= quota {
		return Window{Count: c.count, ResetAt: c.resetAt}, false, nil
	}
	c.count++
	return Window{Count: c.count, ResetAt: c.resetAt}, true, nil
}

// Sweep removes counters more than one window past their reset and reports
// how many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, c := range s.counters {
		if now.After(c.resetAt.Add(s.window)) {
			delete(s.counters, k)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// Run sweeps on every tick until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}
