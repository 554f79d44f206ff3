package metrics

import (
	"time"

	"github.com/linkflow/engine/internal/history/types"
)

// HistoryAdapter implements history.Metrics on top of ServiceMetrics so the
// History service's event-recording hot path feeds real Prometheus series
// instead of the no-op default.
type HistoryAdapter struct {
	sm *ServiceMetrics
}

// NewHistoryAdapter builds a history.Metrics implementation backed by the
// given registry (DefaultRegistry if nil).
func NewHistoryAdapter(registry *Registry) *HistoryAdapter {
	return &HistoryAdapter{sm: NewServiceMetrics(registry, "history")}
}

func (a *HistoryAdapter) RecordEventRecorded(eventType types.EventType) {
	a.sm.HistoryEventRecorded(eventType.String())
}

func (a *HistoryAdapter) RecordEventRetrieved(count int) {
	a.sm.registry.Counter("linkflow_history_events_retrieved_total", Labels{
		"service": a.sm.service,
	}).Add(int64(count))
}

func (a *HistoryAdapter) RecordServiceLatency(operation string, duration time.Duration) {
	a.sm.registry.Histogram("linkflow_history_operation_duration_ms", Labels{
		"service":   a.sm.service,
		"operation": operation,
	}, nil).ObserveDuration(duration)
}
