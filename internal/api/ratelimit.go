package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiterEntry tracks one client's token bucket and its last use, so
// idle entries can be dropped.
type ipLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter applies a token-bucket budget per client IP. The browser
// endpoints sit in front of an exchange lock and a database transaction,
// so a misbehaving client gets throttled here before it can pile up
// waiters inside.
type IPRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*ipLimiterEntry
	limit   rate.Limit
	burst   int
}

// NewIPRateLimiter returns a limiter allowing requestsPerSecond sustained
// with the given burst per client IP.
func NewIPRateLimiter(requestsPerSecond float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		entries: make(map[string]*ipLimiterEntry),
		limit:   rate.Limit(requestsPerSecond),
		burst:   burst,
	}
}

// Allow reports whether a request from ip fits its budget.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[ip]
	if !ok {
		entry = &ipLimiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// PruneIdle drops entries not seen for maxIdle and returns how many were
// removed. Called by the housekeeping pass.
func (l *IPRateLimiter) PruneIdle(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	pruned := 0
	for ip, entry := range l.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(l.entries, ip)
			pruned++
		}
	}
	return pruned
}
