package telemetry

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"k8s.io/klog/v2"

	"kubecmdb/internal/domain"
)

// PrometheusGateway queries a Prometheus-compatible HTTP API with an instant
// vector selector over all requested metric names
type PrometheusGateway struct {
	api     promv1.API
	timeout time.Duration
	now     func() time.Time
}

// NewPrometheusGateway creates a gateway against the Prometheus API at address
func NewPrometheusGateway(address string, timeout time.Duration) (*PrometheusGateway, error) {
	client, err := api.NewClient(api.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("create prometheus client: %w", err)
	}
	return &PrometheusGateway{
		api:     promv1.NewAPI(client),
		timeout: timeout,
		now:     time.Now,
	}, nil
}

// Query returns the latest sample of every series matching metrics for source
func (g *PrometheusGateway) Query(ctx context.Context, metrics []string, source string) ([]domain.RawSample, error) {
	if len(metrics) == 0 {
		return nil, nil
	}

	query := selector(metrics, source)
	var opts []promv1.Option
	if g.timeout > 0 {
		opts = append(opts, promv1.WithTimeout(g.timeout))
	}

	result, warnings, err := g.api.Query(ctx, query, g.now(), opts...)
	if err != nil {
		return nil, transportError("prometheus query: %v", err)
	}
	for _, w := range warnings {
		klog.InfoS("Prometheus query warning", "source", source, "warning", w)
	}

	vector, ok := result.(model.Vector)
	if !ok {
		return nil, transportError("prometheus query returned %s, want vector", result.Type())
	}

	samples := make([]domain.RawSample, 0, len(vector))
	for _, s := range vector {
		attrs := make(map[string]string, len(s.Metric))
		for name, value := range s.Metric {
			if name == model.MetricNameLabel {
				continue
			}
			attrs[string(name)] = string(value)
		}
		samples = append(samples, domain.RawSample{
			MetricName: string(s.Metric[model.MetricNameLabel]),
			Attributes: attrs,
			Timestamp:  s.Timestamp.Time().UTC(),
			Value:      strconv.FormatFloat(float64(s.Value), 'f', -1, 64),
		})
	}

	klog.V(4).InfoS("Prometheus query complete", "source", source, "series", len(samples))
	return samples, nil
}

// selector builds {__name__=~"a|b",instance_id="source"}
func selector(metrics []string, source string) string {
	quoted := make([]string, len(metrics))
	for i, m := range metrics {
		quoted[i] = regexp.QuoteMeta(m)
	}
	return fmt.Sprintf(`{%s=~%q,%s=%q}`,
		model.MetricNameLabel, strings.Join(quoted, "|"), AttrSource, source)
}
