package server

import (
	"testing"
	"time"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	rl := NewRateLimiter(5, 60*time.Second)
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return base }

	for i := 0; i < 5; i++ {
		if !rl.Allow("203.0.113.7") {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
	if rl.Allow("203.0.113.7") {
		t.Fatalf("6th call within the window should be rejected")
	}
	if rl.Remaining("203.0.113.7") != 0 {
		t.Fatalf("expected 0 remaining, got %d", rl.Remaining("203.0.113.7"))
	}

	// A different client gets its own window.
	if !rl.Allow("198.51.100.2") {
		t.Fatalf("other identifier should be unaffected")
	}

	// Past the window the counter resets.
	rl.now = func() time.Time { return base.Add(61 * time.Second) }
	if !rl.Allow("203.0.113.7") {
		t.Fatalf("call after window elapsed should be allowed")
	}
	if rl.Remaining("203.0.113.7") != 4 {
		t.Fatalf("expected 4 remaining after reset, got %d", rl.Remaining("203.0.113.7"))
	}
}

func TestRateLimiterDefaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	if rl.max != 5 || rl.window != time.Minute {
		t.Fatalf("unexpected defaults: max=%d window=%v", rl.max, rl.window)
	}
}
