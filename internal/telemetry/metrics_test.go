package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCacheHitMissCounters(t *testing.T) {
	m := NewMetrics()

	m.CacheHit("memory")
	m.CacheHit("memory")
	m.CacheMiss("redis")

	if got := testutil.ToFloat64(m.CacheHits.WithLabelValues("memory")); got != 2 {
		t.Fatalf("memory hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CacheMisses.WithLabelValues("redis")); got != 1 {
		t.Fatalf("redis misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheHits.WithLabelValues("redis")); got != 0 {
		t.Fatalf("redis hits = %v, want 0", got)
	}
}
