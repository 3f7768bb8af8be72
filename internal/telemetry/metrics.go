package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests      *prometheus.CounterVec
	GenerationSeconds *prometheus.HistogramVec
	CacheHits         *prometheus.CounterVec
	CacheMisses       *prometheus.CounterVec
	PostViews         prometheus.Counter
}

// NewMetrics builds and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pressgen",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		GenerationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pressgen",
			Name:      "generation_stage_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pressgen",
			Name:      "cache_hits_total",
			Help:      "Cache hits by tier.",
		}, []string{"tier"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pressgen",
			Name:      "cache_misses_total",
			Help:      "Cache misses by tier.",
		}, []string{"tier"}),
		PostViews: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pressgen",
			Name:      "post_views_total",
			Help:      "Tracked post views.",
		}),
	}

	reg.MustRegister(m.HTTPRequests, m.GenerationSeconds, m.CacheHits, m.CacheMisses, m.PostViews)
	return m
}

// Handler exposes the registry for a /metrics route.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CacheHit counts one cache hit on the named tier.
func (m *Metrics) CacheHit(tier string) {
	m.CacheHits.WithLabelValues(tier).Inc()
}

// CacheMiss counts one cache miss on the named tier.
func (m *Metrics) CacheMiss(tier string) {
	m.CacheMisses.WithLabelValues(tier).Inc()
}
