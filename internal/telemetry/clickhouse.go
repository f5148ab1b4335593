package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"k8s.io/klog/v2"

	"kubecmdb/internal/domain"
)

// DefaultGaugeTable is the OpenTelemetry exporter's gauge table
const DefaultGaugeTable = "otel.otel_metrics_gauge"

// ClickHouseGateway posts SQL over ClickHouse's HTTP interface. Only rows at
// the latest TimeUnix for the source are returned, so every sample in a result
// belongs to the same collection instant.
type ClickHouseGateway struct {
	client *resty.Client
	table  string
}

// NewClickHouseGateway creates a gateway posting queries to address
func NewClickHouseGateway(address, table string, timeout time.Duration) *ClickHouseGateway {
	if table == "" {
		table = DefaultGaugeTable
	}
	client := resty.New().
		SetBaseURL(address).
		SetHeader("Content-Type", "text/plain; charset=utf-8")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &ClickHouseGateway{client: client, table: table}
}

type clickHouseResponse struct {
	Data []clickHouseRow `json:"data"`
}

type clickHouseRow struct {
	MetricName string            `json:"MetricName"`
	Attributes map[string]string `json:"Attributes"`
	TimeUnix   string            `json:"TimeUnix"`
	Value      json.RawMessage   `json:"Value"`
}

// Query returns the latest samples for metrics scoped to source
func (g *ClickHouseGateway) Query(ctx context.Context, metrics []string, source string) ([]domain.RawSample, error) {
	if len(metrics) == 0 {
		return nil, nil
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(g.buildSQL(metrics, source)).
		Post("/")
	if err != nil {
		return nil, transportError("clickhouse request: %v", err)
	}
	if !resp.IsSuccess() {
		return nil, transportError("clickhouse status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var body clickHouseResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, transportError("decode clickhouse response: %v", err)
	}

	samples := make([]domain.RawSample, 0, len(body.Data))
	for _, row := range body.Data {
		samples = append(samples, domain.RawSample{
			MetricName: row.MetricName,
			Attributes: row.Attributes,
			Timestamp:  parseTimeUnix(row.TimeUnix),
			Value:      rawValue(row.Value),
		})
	}

	klog.V(4).InfoS("ClickHouse query complete", "source", source, "rows", len(samples))
	return samples, nil
}

func (g *ClickHouseGateway) buildSQL(metrics []string, source string) string {
	quoted := make([]string, len(metrics))
	for i, m := range metrics {
		quoted[i] = sqlString(m)
	}
	names := "(" + strings.Join(quoted, ", ") + ")"
	src := sqlString(source)

	return fmt.Sprintf(`WITH latest_time AS (
    SELECT max(TimeUnix) AS latest_timestamp
    FROM %[1]s
    WHERE MetricName IN %[2]s
    AND Attributes['%[3]s'] = %[4]s
)
SELECT MetricName, Attributes, TimeUnix, Value
FROM %[1]s
WHERE MetricName IN %[2]s
AND Attributes['%[3]s'] = %[4]s
AND TimeUnix = (SELECT latest_timestamp FROM latest_time)
FORMAT JSON`, g.table, names, AttrSource, src)
}

// sqlString quotes s as a ClickHouse string literal
func sqlString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseTimeUnix(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// rawValue renders a JSON number or quoted number as a plain string
func rawValue(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if unquoted, err := strconv.Unquote(s); err == nil {
		return unquoted
	}
	if s == "null" {
		return ""
	}
	return s
}
