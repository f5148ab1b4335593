package adapter

import (
	"context"
	"time"

	"kubecmdb/internal/domain"
)

// AdapterType defines how an adapter interacts with its data source
type AdapterType string

const (
	// AdapterTypePolling - adapter pulls data on a schedule
	AdapterTypePolling AdapterType = "polling"
	// AdapterTypeOneShot - manual trigger only
	AdapterTypeOneShot AdapterType = "oneshot"
)

// AdapterConfig holds configuration for an adapter instance
type AdapterConfig struct {
	// Enabled determines if the adapter should run
	Enabled bool `json:"enabled"`
	// PollInterval for polling adapters; zero means one minute
	PollInterval time.Duration `json:"poll_interval,omitempty"`
}

// Adapter is a telemetry source producing normalized collections
type Adapter interface {
	// Name returns the unique identifier for this adapter
	Name() string

	// Type returns how this adapter interacts with its source
	Type() AdapterType

	// Start initializes the adapter (called once on startup)
	Start(ctx context.Context) error

	// Stop gracefully shuts down the adapter
	Stop() error

	// Sync pulls the current telemetry and returns it normalized. Called on
	// schedule for polling adapters, or manually for oneshot.
	Sync(ctx context.Context) (*domain.Collection, error)
}

// EventPublisher allows adapters to publish progress events
type EventPublisher interface {
	PublishCollectEvent(eventType string, payload any)
}

// ProgressAdapter extends Adapter with progress reporting
type ProgressAdapter interface {
	Adapter

	// SetEventPublisher sets the event publisher for progress updates
	SetEventPublisher(pub EventPublisher)
}
