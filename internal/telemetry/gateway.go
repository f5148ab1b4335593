// Package telemetry queries the time-series backend for the most recent
// sample of each collected metric.
//
// Two gateways are provided: PrometheusGateway speaks the Prometheus HTTP API
// and ClickHouseGateway posts SQL to a ClickHouse HTTP endpoint holding
// OpenTelemetry gauge tables. Both return plain domain.RawSample values and
// carry no retry or caching logic.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"kubecmdb/internal/domain"
)

// ErrTransport marks a failed or non-successful query. It is fatal for the
// current collection cycle.
var ErrTransport = errors.New("telemetry transport error")

// Gateway returns the most recent sample per metric for one source
type Gateway interface {
	Query(ctx context.Context, metrics []string, source string) ([]domain.RawSample, error)
}

// GatewayFunc adapts a function to the Gateway interface
type GatewayFunc func(ctx context.Context, metrics []string, source string) ([]domain.RawSample, error)

// Query calls f
func (f GatewayFunc) Query(ctx context.Context, metrics []string, source string) ([]domain.RawSample, error) {
	return f(ctx, metrics, source)
}

func transportError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTransport, fmt.Sprintf(format, args...))
}
