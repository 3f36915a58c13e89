package inmem

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"holistica/internal/gateway"
)

const staleThreshold = 10 * time.Minute

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter.
// perSecond is the refill rate, burst is the bucket capacity.
// clock is injectable for deterministic testing.
func NewRateLimiter(perSecond float64, burst int, clock func() time.Time) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		now:     clock,
		entries: make(map[string]*limiterEntry),
	}
}

// Allow checks whether a request identified by key should be allowed.
func (rl *RateLimiter) Allow(key string) gateway.RateLimitResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	e, ok := rl.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[key] = e
	}
	e.lastSeen = now

	if e.limiter.AllowN(now, 1) {
		return gateway.RateLimitResult{Allowed: true}
	}

	// Reserve only to learn the wait, then hand the token back.
	retryAfter := 1
	if r := e.limiter.ReserveN(now, 1); r.OK() {
		retryAfter = max(int(math.Ceil(r.DelayFrom(now).Seconds())), 1)
		r.CancelAt(now)
	}
	return gateway.RateLimitResult{Allowed: false, RetryAfter: retryAfter}
}

// Cleanup removes limiters that haven't been seen recently.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, e := range rl.entries {
		if now.Sub(e.lastSeen) > staleThreshold {
			delete(rl.entries, key)
		}
	}
}

// BucketCount returns the number of active limiters (for testing).
func (rl *RateLimiter) BucketCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}
