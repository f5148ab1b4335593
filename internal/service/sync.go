package service

import (
	"context"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"kubecmdb/internal/domain"
	"kubecmdb/internal/metrics"
	"kubecmdb/internal/reconcile"
)

// CycleSummary is the payload of cycle events
type CycleSummary struct {
	RunID    string            `json:"run_id,omitempty"`
	Adapter  string            `json:"adapter"`
	Source   string            `json:"source"`
	Summary  reconcile.Summary `json:"summary"`
	Duration time.Duration     `json:"duration,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// SyncService runs reconciliation for every collection an adapter produces
// and keeps the latest report per source
type SyncService struct {
	controller *reconcile.Controller
	eventBus   *EventBus
	metrics    *metrics.Metrics
	now        func() time.Time

	mu     sync.RWMutex
	latest map[string]*reconcile.CycleReport
}

// NewSyncService creates a sync service. metrics may be nil.
func NewSyncService(controller *reconcile.Controller, eventBus *EventBus, m *metrics.Metrics) *SyncService {
	return &SyncService{
		controller: controller,
		eventBus:   eventBus,
		metrics:    m,
		now:        time.Now,
		latest:     make(map[string]*reconcile.CycleReport),
	}
}

// Reconcile runs one cycle over collection. It matches adapter.ReconcileFunc.
// Item failures are reported, not returned.
func (s *SyncService) Reconcile(ctx context.Context, adapter string, collection *domain.Collection) error {
	source := collection.Source
	s.eventBus.Publish(Event{Type: EventCycleStarted, Payload: CycleSummary{Adapter: adapter, Source: source}})

	report, err := s.controller.Run(ctx, collection, s.now())
	if err != nil {
		klog.ErrorS(err, "Reconciliation aborted", "adapter", adapter, "source", source)
		if s.metrics != nil {
			s.metrics.ObserveAbort(source)
		}
		s.eventBus.Publish(Event{Type: EventCycleFailed, Payload: CycleSummary{Adapter: adapter, Source: source, Error: err.Error()}})
		return err
	}

	s.mu.Lock()
	s.latest[source] = report
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ObserveCycle(report)
	}
	s.eventBus.Publish(Event{Type: EventCycleCompleted, Payload: CycleSummary{
		RunID:    report.RunID,
		Adapter:  adapter,
		Source:   source,
		Summary:  report.Summary(),
		Duration: report.Duration,
	}})
	return nil
}

// Latest returns the most recent report for source
func (s *SyncService) Latest(source string) (*reconcile.CycleReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.latest[source]
	return r, ok
}

// Sources lists the sources with a stored report
func (s *SyncService) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.latest))
	for src := range s.latest {
		out = append(out, src)
	}
	return out
}

// PublishCollect forwards adapter progress to the event bus. It matches
// adapter.CollectEventFunc.
func (s *SyncService) PublishCollect(eventType string, payload any) {
	s.eventBus.Publish(Event{Type: EventCollect, Payload: map[string]any{"event": eventType, "progress": payload}})
}
