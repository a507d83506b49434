package gateway

import (
	"sync"
	"time"
)

// DefaultMessagesPerMinute bounds update_location messages per session
const DefaultMessagesPerMinute = 60

// RateLimiter implements sliding window rate limiting per session
type RateLimiter struct {
	mu        sync.Mutex
	perMinute int
	requests  []time.Time
	now       func() time.Time
}

// NewRateLimiter creates a limiter. perMinute <= 0 uses the default.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = DefaultMessagesPerMinute
	}
	return &RateLimiter{
		perMinute: perMinute,
		requests:  make([]time.Time, 0, perMinute),
		now:       time.Now,
	}
}

// Allow records a request if it fits in the current window
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)

	if len(r.requests) >= r.perMinute {
		return false
	}
	r.requests = append(r.requests, now)
	return true
}

// Count returns how many requests are in the current window
func (r *RateLimiter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune(r.now())
	return len(r.requests)
}

// prune drops requests older than one minute. Caller must hold r.mu.
func (r *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(r.requests) && !r.requests[i].After(cutoff) {
		i++
	}
	r.requests = r.requests[i:]
}
