package telemetry

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/pressgen/pressgen/internal/store"
)

// Operation statuses recorded by the monitor.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// MetricSink persists finished samples. *store.Store satisfies it.
type MetricSink interface {
	InsertMetric(ctx context.Context, rec store.MetricRecord) error
}

// Monitor times named operations and flushes each finished sample to the
// sink. Flush failures are logged and never propagate to callers.
type Monitor struct {
	sink    MetricSink
	metrics *Metrics
	logger  *log.Logger
	now     func() time.Time
}

// Sample is one in-flight timed operation.
type Sample struct {
	monitor   *Monitor
	operation string
	started   time.Time
	metadata  map[string]interface{}
}

func NewMonitor(sink MetricSink, metrics *Metrics, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags)
	}
	return &Monitor{sink: sink, metrics: metrics, logger: logger, now: time.Now}
}

// Start begins timing an operation.
func (m *Monitor) Start(operation string) *Sample {
	return &Sample{
		monitor:   m,
		operation: operation,
		started:   m.now(),
		metadata:  map[string]interface{}{},
	}
}

// Annotate attaches a metadata field to the sample.
func (s *Sample) Annotate(key string, value interface{}) *Sample {
	s.metadata[key] = value
	return s
}

// End finalizes the sample with the given status and flushes it.
func (s *Sample) End(ctx context.Context, status string) time.Duration {
	m := s.monitor
	elapsed := m.now().Sub(s.started)

	if m.metrics != nil {
		m.metrics.GenerationSeconds.WithLabelValues(s.operation).Observe(elapsed.Seconds())
	}
	if m.sink != nil {
		rec := store.MetricRecord{
			Operation:  s.operation,
			DurationMS: elapsed.Milliseconds(),
			Status:     status,
			Metadata:   s.metadata,
		}
		if err := m.sink.InsertMetric(ctx, rec); err != nil {
			m.logger.Printf("metric flush failed for %s: %v", s.operation, err)
		}
	}
	return elapsed
}

// StatusForErr maps an error to a recorded status.
func StatusForErr(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusError
	}
}
