package worker

import (
	"context"
	"sync/atomic"
	"time"
)

// Metrics describes one handler invocation.
type Metrics struct {
	Start    time.Time
	Duration time.Duration
	InFlight int

	Metadata Metadata

	Error error
}

// Success returns 1 for a successful invocation, 0 otherwise.
func (m *Metrics) Success() int {
	if m.Error == nil {
		return 1
	}
	return 0
}

// MetricsCollector receives the metrics of every invocation.
type MetricsCollector func(metrics *Metrics)

// Collect reports Metrics for every invocation to collect.
func Collect[T any](collect MetricsCollector) Middleware[T] {
	if collect == nil {
		return nil
	}
	var inFlight atomic.Int32
	return func(next Handler[T]) Handler[T] {
		return func(ctx context.Context, in T) error {
			m := &Metrics{
				Start:    time.Now(),
				InFlight: int(inFlight.Add(1)),
				Metadata: MetadataFromContext(ctx),
			}
			err := next(ctx, in)
			inFlight.Add(-1)
			m.Duration = time.Since(m.Start)
			m.Error = err
			collect(m)
			return err
		}
	}
}

// DistributeMetrics fans metrics out to several collectors. Nil collectors
// are skipped.
func DistributeMetrics(collectors ...MetricsCollector) MetricsCollector {
	return func(m *Metrics) {
		for _, c := range collectors {
			if c != nil {
				c(m)
			}
		}
	}
}
