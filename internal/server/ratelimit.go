package server

import (
	"sync"
	"time"
)

type rateWindow struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a fixed-window counter keyed by client identifier. State
// lives in process memory, so limits are per instance, not distributed.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	max     int
	window  time.Duration
	now     func() time.Time
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		windows: make(map[string]*rateWindow),
		max:     max,
		window:  window,
		now:     time.Now,
	}
}

// Allow reports whether the identifier may proceed, counting this call.
func (r *RateLimiter) Allow(identifier string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	w, ok := r.windows[identifier]
	if !ok || now.After(w.resetAt) {
		r.windows[identifier] = &rateWindow{count: 1, resetAt: now.Add(r.window)}
		return true
	}
	if w.count >= r.max {
		return false
	}
	w.count++
	return true
}

// Remaining reports how many calls the identifier has left in its window.
func (r *RateLimiter) Remaining(identifier string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[identifier]
	if !ok || r.now().After(w.resetAt) {
		return r.max
	}
	left := r.max - w.count
	if left < 0 {
		left = 0
	}
	return left
}
