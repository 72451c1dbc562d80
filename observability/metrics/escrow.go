package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type EscrowMetrics struct {
	eventsEmitted   *prometheus.CounterVec
	operationErrors *prometheus.CounterVec
	operationTime   *prometheus.HistogramVec
}

var (
	escrowOnce     sync.Once
	escrowRegistry *EscrowMetrics
)

// Escrow returns the process-wide escrow metric set, registering it on first
// use.
func Escrow() *EscrowMetrics {
	escrowOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			eventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "escrow_events_emitted_total",
				Help: "Count of settlement events emitted by type.",
			}, []string{"type"}),
			operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "escrow_operation_errors_total",
				Help: "Count of failed settlement operations by name.",
			}, []string{"operation"}),
			operationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "escrow_operation_duration_seconds",
				Help:    "Latency of settlement operations by name.",
				Buckets: prometheus.DefBuckets,
			}, []string{"operation"}),
		}
		prometheus.MustRegister(
			escrowRegistry.eventsEmitted,
			escrowRegistry.operationErrors,
			escrowRegistry.operationTime,
		)
	})
	return escrowRegistry
}

// EventsEmittedVec exposes the emitted-event counter, primarily for tests.
func (m *EscrowMetrics) EventsEmittedVec() *prometheus.CounterVec { return m.eventsEmitted }

// OperationErrorsVec exposes the operation failure counter, primarily for
// tests.
func (m *EscrowMetrics) OperationErrorsVec() *prometheus.CounterVec { return m.operationErrors }

// OperationTimeVec exposes the operation latency histogram, primarily for
// tests.
func (m *EscrowMetrics) OperationTimeVec() *prometheus.HistogramVec { return m.operationTime }

// EventEmitted records one emitted settlement event of the given type.
func (m *EscrowMetrics) EventEmitted(eventType string) {
	if m == nil {
		return
	}
	m.eventsEmitted.WithLabelValues(eventType).Inc()
}

// OperationError records one failed settlement operation.
func (m *EscrowMetrics) OperationError(operation string) {
	if m == nil {
		return
	}
	m.operationErrors.WithLabelValues(operation).Inc()
}

// ObserveOperation records the latency of one settlement operation.
func (m *EscrowMetrics) ObserveOperation(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.operationTime.WithLabelValues(operation).Observe(d.Seconds())
}
