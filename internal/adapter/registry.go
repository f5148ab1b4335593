package adapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"k8s.io/klog/v2"

	"kubecmdb/internal/domain"
)

// ReconcileFunc is called with each collection an adapter produces
type ReconcileFunc func(ctx context.Context, adapter string, collection *domain.Collection) error

// CollectEventFunc is called when adapters publish progress
type CollectEventFunc func(eventType string, payload any)

// Registry manages all registered adapters and their lifecycle
type Registry struct {
	mu           sync.RWMutex
	adapters     map[string]Adapter
	configs      map[string]AdapterConfig
	reconcile    ReconcileFunc
	collectEvent CollectEventFunc
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup

	// running serializes syncs per adapter so a slow cycle is never
	// overlapped by the next tick or a manual trigger
	running sync.Map
}

// NewRegistry creates a new adapter registry
func NewRegistry(reconcile ReconcileFunc) *Registry {
	return &Registry{
		adapters:  make(map[string]Adapter),
		configs:   make(map[string]AdapterConfig),
		reconcile: reconcile,
	}
}

// SetCollectEventHandler sets the handler for progress events
func (r *Registry) SetCollectEventHandler(handler CollectEventFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectEvent = handler
}

// PublishCollectEvent implements EventPublisher
func (r *Registry) PublishCollectEvent(eventType string, payload any) {
	r.mu.RLock()
	handler := r.collectEvent
	r.mu.RUnlock()

	if handler != nil {
		handler(eventType, payload)
	}
}

// Register adds an adapter to the registry
func (r *Registry) Register(adapter Adapter, config AdapterConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := adapter.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter %s already registered", name)
	}

	if progressAdapter, ok := adapter.(ProgressAdapter); ok {
		progressAdapter.SetEventPublisher(r)
	}

	r.adapters[name] = adapter
	r.configs[name] = config
	klog.InfoS("Registered adapter", "name", name, "type", adapter.Type(), "enabled", config.Enabled)
	return nil
}

// Start initializes all enabled adapters and begins their sync cycles
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ctx, r.cancel = context.WithCancel(ctx)

	for name, adapter := range r.adapters {
		config := r.configs[name]
		if !config.Enabled {
			klog.InfoS("Adapter disabled, skipping", "name", name)
			continue
		}

		if err := adapter.Start(r.ctx); err != nil {
			klog.ErrorS(err, "Failed to start adapter", "name", name)
			continue
		}

		if adapter.Type() == AdapterTypePolling {
			r.startPollingLoop(name, adapter, config)
		}
	}
	return nil
}

// Stop gracefully shuts down all adapters. It cancels and waits for polling
// loops and background syncs.
func (r *Registry) Stop() error {
	// cancel under the write lock so StartSyncAll never adds to wg after Wait
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	// polling loops publish events under the read lock; wait unlocked
	r.wg.Wait()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs error
	for name, adapter := range r.adapters {
		if err := adapter.Stop(); err != nil {
			klog.ErrorS(err, "Error stopping adapter", "name", name)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errs
}

// TriggerSync manually triggers a sync for a specific adapter
func (r *Registry) TriggerSync(ctx context.Context, name string) error {
	r.mu.RLock()
	adapter, exists := r.adapters[name]
	config := r.configs[name]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("adapter %s not found", name)
	}
	if !config.Enabled {
		return fmt.Errorf("adapter %s is disabled", name)
	}
	return r.runSync(ctx, name, adapter)
}

// TriggerSyncAll manually triggers sync for all enabled adapters
func (r *Registry) TriggerSyncAll(ctx context.Context) error {
	var errs error
	for _, info := range r.ListAdapters() {
		if !info.Enabled {
			continue
		}
		if err := r.TriggerSync(ctx, info.Name); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", info.Name, err))
		}
	}
	return errs
}

// ErrNotStarted is returned by StartSyncAll outside Start and Stop
var ErrNotStarted = errors.New("adapter registry not running")

// StartSyncAll runs TriggerSyncAll in the background under the registry's
// lifetime, so Stop cancels and waits for it. It fails with
// ErrSyncInProgress, starting nothing, when an enabled adapter is already
// syncing.
func (r *Registry) StartSyncAll() error {
	for _, info := range r.ListAdapters() {
		if info.Enabled && r.Syncing(info.Name) {
			return fmt.Errorf("%s: %w", info.Name, ErrSyncInProgress)
		}
	}

	r.mu.Lock()
	ctx := r.ctx
	if ctx == nil || ctx.Err() != nil {
		r.mu.Unlock()
		return ErrNotStarted
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		if err := r.TriggerSyncAll(ctx); err != nil {
			klog.ErrorS(err, "Triggered sync failed")
		}
	}()
	return nil
}

// Syncing reports whether the named adapter has a sync in flight
func (r *Registry) Syncing(name string) bool {
	_, busy := r.running.Load(name)
	return busy
}

// AdapterInfo provides read-only information about an adapter
type AdapterInfo struct {
	Name         string        `json:"name"`
	Type         AdapterType   `json:"type"`
	Enabled      bool          `json:"enabled"`
	PollInterval time.Duration `json:"poll_interval,omitempty"`
	Syncing      bool          `json:"syncing"`
}

// ListAdapters returns information about registered adapters, by name
func (r *Registry) ListAdapters() []AdapterInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]AdapterInfo, 0, len(r.adapters))
	for name, adapter := range r.adapters {
		config := r.configs[name]
		infos = append(infos, AdapterInfo{
			Name:         name,
			Type:         adapter.Type(),
			Enabled:      config.Enabled,
			PollInterval: config.PollInterval,
			Syncing:      r.Syncing(name),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// startPollingLoop starts a goroutine that polls the adapter on schedule
func (r *Registry) startPollingLoop(name string, adapter Adapter, config AdapterConfig) {
	interval := config.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ctx := r.ctx

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		if err := r.runSync(ctx, name, adapter); err != nil {
			klog.ErrorS(err, "Initial sync failed", "adapter", name)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				klog.InfoS("Stopping polling loop", "adapter", name)
				return
			case <-ticker.C:
				if err := r.runSync(ctx, name, adapter); err != nil {
					klog.ErrorS(err, "Sync failed", "adapter", name)
				}
			}
		}
	}()

	klog.InfoS("Started polling loop", "adapter", name, "interval", interval)
}

// ErrSyncInProgress is returned when a sync for the same adapter is running
var ErrSyncInProgress = errors.New("sync already in progress")

// runSync executes a sync operation and reconciles the result
func (r *Registry) runSync(ctx context.Context, name string, adapter Adapter) error {
	if _, busy := r.running.LoadOrStore(name, struct{}{}); busy {
		return ErrSyncInProgress
	}
	defer r.running.Delete(name)

	klog.V(1).InfoS("Running sync", "adapter", name)

	collection, err := adapter.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	if collection == nil {
		return nil
	}

	if err := r.reconcile(ctx, name, collection); err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}

	klog.V(1).InfoS("Sync complete", "adapter", name, "records", collection.Len())
	return nil
}
