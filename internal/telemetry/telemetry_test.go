package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kubecmdb/internal/domain"
)

func TestCatalogCoversEveryCategory(t *testing.T) {
	for _, c := range domain.Categories {
		assert.NotEmpty(t, Catalog[c], "category %s has no metrics", c)
	}

	c, ok := CategoryOf(MetricReplicaSetOwner)
	require.True(t, ok)
	assert.Equal(t, domain.CategoryWorkload, c)

	_, ok = CategoryOf("node_cpu_seconds_total")
	assert.False(t, ok)

	all := AllMetrics()
	assert.Len(t, all, 14)
	assert.IsIncreasing(t, all)
}

func TestSelector(t *testing.T) {
	got := selector([]string{"kube_node_info", "kube_pod_info"}, "cluster-a")
	assert.Equal(t, `{__name__=~"kube_node_info|kube_pod_info",instance_id="cluster-a"}`, got)
}

func TestPrometheusGatewayQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/query", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotQuery = r.Form.Get("query")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"success","data":{"resultType":"vector","result":[
			{"metric":{"__name__":"kube_node_status_capacity","node":"n1","resource":"memory","instance_id":"c1"},"value":[1700000000,"2147483648"]},
			{"metric":{"__name__":"kube_node_info","node":"n1","instance_id":"c1"},"value":[1700000000,"1"]}
		]}}`)
	}))
	defer srv.Close()

	gw, err := NewPrometheusGateway(srv.URL, time.Second)
	require.NoError(t, err)

	samples, err := gw.Query(context.Background(), []string{MetricNodeInfo, MetricNodeCapacity}, "c1")
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Contains(t, gotQuery, `instance_id="c1"`)
	assert.Equal(t, MetricNodeCapacity, samples[0].MetricName)
	assert.Equal(t, "2147483648", samples[0].Value)
	assert.Equal(t, "memory", samples[0].Attr("resource"))
	assert.NotContains(t, samples[0].Attributes, "__name__")
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), samples[0].Timestamp)
}

func TestPrometheusGatewayTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"status":"error","errorType":"bad_data","error":"parse error"}`)
	}))
	defer srv.Close()

	gw, err := NewPrometheusGateway(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = gw.Query(context.Background(), []string{MetricNodeInfo}, "c1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestClickHouseGatewayQuery(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		io.WriteString(w, `{"meta":[],"data":[
			{"MetricName":"kube_pod_info","Attributes":{"pod":"p1","uid":"u1","instance_id":"c1"},"TimeUnix":"2024-05-01 10:00:00.000000000","Value":1},
			{"MetricName":"kube_pod_container_resource_limits","Attributes":{"pod":"p1","resource":"memory"},"TimeUnix":"2024-05-01 10:00:00.000000000","Value":"1073741824"}
		],"rows":2}`)
	}))
	defer srv.Close()

	gw := NewClickHouseGateway(srv.URL, "", time.Second)
	samples, err := gw.Query(context.Background(), []string{MetricPodInfo, MetricPodLimits}, "c1")
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Contains(t, body, "FROM otel.otel_metrics_gauge")
	assert.Contains(t, body, "'kube_pod_info', 'kube_pod_container_resource_limits'")
	assert.Contains(t, body, "Attributes['instance_id'] = 'c1'")
	assert.True(t, strings.HasSuffix(body, "FORMAT JSON"))

	assert.Equal(t, "1", samples[0].Value)
	assert.Equal(t, "1073741824", samples[1].Value)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), samples[0].Timestamp)
}

func TestClickHouseGatewayNonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "Code: 60. DB::Exception: Table doesn't exist")
	}))
	defer srv.Close()

	gw := NewClickHouseGateway(srv.URL, "missing.table", time.Second)
	_, err := gw.Query(context.Background(), []string{MetricPodInfo}, "c1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSQLStringEscapes(t *testing.T) {
	assert.Equal(t, `'a\'b'`, sqlString("a'b"))
	assert.Equal(t, `'a\\b'`, sqlString(`a\b`))
}

func TestRawValue(t *testing.T) {
	assert.Equal(t, "1.5", rawValue([]byte("1.5")))
	assert.Equal(t, "42", rawValue([]byte(`"42"`)))
	assert.Equal(t, "", rawValue([]byte("null")))
}
