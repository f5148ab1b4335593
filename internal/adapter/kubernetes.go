package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"kubecmdb/internal/domain"
	"kubecmdb/internal/normalize"
	"kubecmdb/internal/telemetry"
)

// Progress event types published by KubernetesAdapter
const (
	EventCollectStarted   = "collect_started"
	EventCollectCompleted = "collect_completed"
	EventCollectFailed    = "collect_failed"
)

// CollectProgress is the payload of collect events
type CollectProgress struct {
	Source   string         `json:"source"`
	Samples  int            `json:"samples,omitempty"`
	Records  map[string]int `json:"records,omitempty"`
	Duration time.Duration  `json:"duration,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// KubernetesAdapter collects one cluster's telemetry through a gateway and
// normalizes it into records
type KubernetesAdapter struct {
	gateway    telemetry.Gateway
	normalizer *normalize.Normalizer
	metrics    []string
	typ        AdapterType

	mu        sync.RWMutex
	publisher EventPublisher
}

// NewKubernetesAdapter creates an adapter for the cluster identified by
// source. A polling adapter is scheduled by the registry; a oneshot one only
// runs when triggered.
func NewKubernetesAdapter(gateway telemetry.Gateway, source string, typ AdapterType) *KubernetesAdapter {
	return &KubernetesAdapter{
		gateway:    gateway,
		normalizer: normalize.New(source),
		metrics:    telemetry.AllMetrics(),
		typ:        typ,
	}
}

// Name returns the adapter name, one per cluster
func (a *KubernetesAdapter) Name() string {
	return "kubernetes:" + a.normalizer.Source()
}

// Type returns the adapter type
func (a *KubernetesAdapter) Type() AdapterType {
	return a.typ
}

// Start is a no-op; the gateway connects lazily
func (a *KubernetesAdapter) Start(ctx context.Context) error {
	return nil
}

// Stop is a no-op
func (a *KubernetesAdapter) Stop() error {
	return nil
}

// SetEventPublisher sets the event publisher for progress updates
func (a *KubernetesAdapter) SetEventPublisher(pub EventPublisher) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.publisher = pub
}

func (a *KubernetesAdapter) publish(eventType string, payload CollectProgress) {
	a.mu.RLock()
	pub := a.publisher
	a.mu.RUnlock()
	if pub != nil {
		pub.PublishCollectEvent(eventType, payload)
	}
}

// Sync queries every catalog metric for the source and normalizes the
// result. A gateway failure aborts the sync.
func (a *KubernetesAdapter) Sync(ctx context.Context) (*domain.Collection, error) {
	source := a.normalizer.Source()
	start := time.Now()
	a.publish(EventCollectStarted, CollectProgress{Source: source})

	samples, err := a.gateway.Query(ctx, a.metrics, source)
	if err != nil {
		a.publish(EventCollectFailed, CollectProgress{Source: source, Error: err.Error()})
		return nil, fmt.Errorf("query telemetry for %s: %w", source, err)
	}

	collection := a.normalizer.Normalize(samples)

	records := make(map[string]int, len(collection.Records))
	for category, rs := range collection.Records {
		records[string(category)] = len(rs)
	}
	klog.InfoS("Telemetry collected", "source", source, "samples", len(samples), "records", collection.Len())
	a.publish(EventCollectCompleted, CollectProgress{
		Source:   source,
		Samples:  len(samples),
		Records:  records,
		Duration: time.Since(start),
	})
	return collection, nil
}
