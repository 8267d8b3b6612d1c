// Package ratelimit implements fixed-window request quotas keyed by client
// and route, with in-memory and Redis counter stores.
package ratelimit

import (
	"sort"
	"strings"
	"time"
)

const (
	DefaultWindow          = time.Minute
	DefaultQuota           = 100
	DefaultCleanupInterval = 5 * time.Minute
)

type routeQuota struct {
	prefix string
	quota  int
}

// Policy resolves the quota for a route key. The longest matching prefix
// wins so "/api/auth/login" can be tighter than "/api/auth".
type Policy struct {
	Window       time.Duration
	DefaultQuota int
	routes       []routeQuota
}

func NewPolicy(window time.Duration, defaultQuota int, routes map[string]int) Policy {
	if window <= 0 {
		window = DefaultWindow
	}
	if defaultQuota <= 0 {
		defaultQuota = DefaultQuota
	}
	p := Policy{Window: window, DefaultQuota: defaultQuota}
	for prefix, quota := range routes {
		if prefix == "" || quota <= 0 {
			continue
		}
		p.routes = append(p.routes, routeQuota{prefix: prefix, quota: quota})
	}
	sort.Slice(p.routes, func(i, j int) bool {
		if len(p.routes[i].prefix) != len(p.routes[j].prefix) {
			return len(p.routes[i].prefix) > len(p.routes[j].prefix)
		}
		return p.routes[i].prefix < p.routes[j].prefix
	})
	return p
}

// Match returns the quota and the prefix that produced it. The prefix is
// empty when the default applied.
func (p Policy) Match(routeKey string) (int, string) {
	for _, r := range p.routes {
		if strings.HasPrefix(routeKey, r.prefix) {
			return r.quota, r.prefix
		}
	}
	return p.DefaultQuota, ""
}

func (p Policy) QuotaFor(routeKey string) int {
	q, _ := p.Match(routeKey)
	return q
}
