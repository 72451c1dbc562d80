package observability

import (
	"log/slog"

	"cescrow/core/events"
	"cescrow/core/types"
	"cescrow/observability/metrics"
)

// EventSink forwards engine events to the escrow metric set and the
// structured logger. It satisfies the events.Emitter interface and is the
// sink wired into the daemon.
type EventSink struct {
	logger  *slog.Logger
	metrics *metrics.EscrowMetrics
}

// NewEventSink builds a sink over the supplied logger. A nil logger falls
// back to the process default.
func NewEventSink(logger *slog.Logger) *EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventSink{logger: logger, metrics: metrics.Escrow()}
}

// Emit implements events.Emitter.
func (s *EventSink) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	eventType := evt.EventType()
	s.metrics.EventEmitted(eventType)

	args := []any{"type", eventType}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := carrier.Event(); payload != nil {
			for key, value := range payload.Attributes {
				args = append(args, key, value)
			}
		}
	}
	s.logger.Info("event emitted", args...)
}
