package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kubecmdb/internal/domain"
	"kubecmdb/internal/telemetry"
)

const testSource = "c1"

var sampleTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func sample(metric, value string, attrs ...string) domain.RawSample {
	m := map[string]string{telemetry.AttrSource: testSource}
	for i := 0; i+1 < len(attrs); i += 2 {
		m[attrs[i]] = attrs[i+1]
	}
	return domain.RawSample{MetricName: metric, Attributes: m, Timestamp: sampleTime, Value: value}
}

// clusterSamples is a small but complete collection cycle
func clusterSamples() []domain.RawSample {
	return []domain.RawSample{
		sample(telemetry.MetricNamespaceLabels, "1", "namespace", "ns1"),
		sample(telemetry.MetricNamespaceLabels, "1", "namespace", "kube-system"),

		sample(telemetry.MetricDeploymentLabels, "1", "namespace", "ns1", "deployment", "dep1"),
		sample(telemetry.MetricReplicaSetLabels, "1", "namespace", "ns1", "replicaset", "rs1"),
		sample(telemetry.MetricReplicaSetOwner, "1", "namespace", "ns1", "replicaset", "rs1",
			"owner_kind", "Deployment", "owner_name", "dep1"),
		sample(telemetry.MetricDaemonSetLabels, "1", "namespace", "kube-system", "daemonset", "proxy"),

		sample(telemetry.MetricNodeInfo, "1", "node", "n1", "internal_ip", "10.0.0.1",
			"os_image", "Ubuntu 22.04", "kernel_version", "", "kubelet_version", "v1.28.2"),
		sample(telemetry.MetricNodeRole, "1", "node", "n1", "role", "control-plane"),
		sample(telemetry.MetricNodeRole, "1", "node", "n1", "role", "worker"),
		sample(telemetry.MetricNodeCapacity, "4", "node", "n1", "resource", "cpu"),
		sample(telemetry.MetricNodeCapacity, "2147483648", "node", "n1", "resource", "memory"),
		sample(telemetry.MetricNodeCapacity, "1073741824", "node", "n1", "resource", "ephemeral_storage"),

		sample(telemetry.MetricPodInfo, "1", "namespace", "ns1", "pod", "p1", "uid", "uid-p1",
			"node", "n1", "pod_ip", "10.1.0.5", "created_by_kind", "ReplicaSet", "created_by_name", "rs1"),
		sample(telemetry.MetricPodInfo, "1", "namespace", "kube-system", "pod", "static", "uid", "uid-static",
			"node", "n1", "created_by_kind", "Node", "created_by_name", "n1"),
		sample(telemetry.MetricPodLimits, "0.5", "namespace", "ns1", "pod", "p1", "container", "a", "resource", "cpu"),
		sample(telemetry.MetricPodLimits, "0.25", "namespace", "ns1", "pod", "p1", "container", "b", "resource", "cpu"),
		sample(telemetry.MetricPodLimits, "3221225472", "namespace", "ns1", "pod", "p1", "container", "a", "resource", "memory"),
		sample(telemetry.MetricPodRequests, "0.1", "namespace", "ns1", "pod", "p1", "container", "a", "resource", "cpu"),

		sample("node_cpu_seconds_total", "12", "node", "n1"),
	}
}

func findRecord(t *testing.T, c *domain.Collection, category domain.Category, instName string) domain.Record {
	t.Helper()
	for _, r := range c.Records[category] {
		if r.Attributes().String(domain.AttrInstName) == instName {
			return r
		}
	}
	t.Fatalf("no %s record %q", category, instName)
	return nil
}

func TestPartition(t *testing.T) {
	buckets := Partition(clusterSamples())
	assert.Len(t, buckets[domain.CategoryNamespace], 2)
	assert.Len(t, buckets[domain.CategoryWorkload], 4)
	assert.Len(t, buckets[domain.CategoryNode], 6)
	assert.Len(t, buckets[domain.CategoryPod], 6)
}

func TestNormalizeNamespaces(t *testing.T) {
	c := New(testSource).Normalize(clusterSamples())
	require.Len(t, c.Records[domain.CategoryNamespace], 2)

	r := findRecord(t, c, domain.CategoryNamespace, "c1/ns1")
	assert.Equal(t, domain.Attributes{"inst_name": "c1/ns1", "name": "ns1"}, r.Attributes())
	assert.Equal(t, []domain.DesiredAssociation{{
		TargetModel:    domain.ModelCluster,
		TargetIdentity: "c1",
		Kind:           domain.RelationBelong,
		RelationID:     domain.RelationNamespaceCluster,
	}}, r.Associations())
}

func TestNormalizeWorkloadOwnership(t *testing.T) {
	c := New(testSource).Normalize(clusterSamples())

	rs := findRecord(t, c, domain.CategoryWorkload, "c1/ns1/rs1")
	assocs := rs.Associations()
	require.Len(t, assocs, 1)
	assert.Equal(t, domain.ModelWorkload, assocs[0].TargetModel)
	assert.Equal(t, "c1/ns1/dep1", assocs[0].TargetIdentity)
	assert.Equal(t, domain.RelationWorkloadWorkload, assocs[0].RelationID)

	attrs := rs.Attributes()
	assert.Equal(t, "deployment", attrs["owner_kind"])
	assert.Equal(t, "dep1", attrs["owner_name"])
	assert.Equal(t, "replicaset", attrs["workload_type"])
	assert.NotContains(t, attrs, "k8s_namespace")

	dep := findRecord(t, c, domain.CategoryWorkload, "c1/ns1/dep1")
	depAssocs := dep.Associations()
	require.Len(t, depAssocs, 1)
	assert.Equal(t, domain.ModelNamespace, depAssocs[0].TargetModel)
	assert.Equal(t, "c1/ns1", depAssocs[0].TargetIdentity)
	assert.Equal(t, "c1/ns1", dep.Attributes()["k8s_namespace"])
}

func TestNormalizeWorkloadUnrecognizedOwner(t *testing.T) {
	samples := []domain.RawSample{
		sample(telemetry.MetricReplicaSetLabels, "1", "namespace", "ns1", "replicaset", "rs2"),
		sample(telemetry.MetricReplicaSetOwner, "1", "namespace", "ns1", "replicaset", "rs2",
			"owner_kind", "Rollout", "owner_name", "canary"),
		// owner sample for a different namespace must not match
		sample(telemetry.MetricReplicaSetLabels, "1", "namespace", "ns2", "replicaset", "rs3"),
		sample(telemetry.MetricReplicaSetOwner, "1", "namespace", "ns1", "replicaset", "rs3",
			"owner_kind", "Deployment", "owner_name", "dep3"),
	}
	c := New(testSource).Normalize(samples)

	for _, name := range []string{"c1/ns1/rs2", "c1/ns2/rs3"} {
		r := findRecord(t, c, domain.CategoryWorkload, name)
		assocs := r.Associations()
		require.Len(t, assocs, 1)
		assert.Equal(t, domain.ModelNamespace, assocs[0].TargetModel, name)
	}
}

func TestNormalizeNodeSparse(t *testing.T) {
	c := New(testSource).Normalize(clusterSamples())
	r := findRecord(t, c, domain.CategoryNode, "c1/n1")

	assert.Equal(t, domain.Attributes{
		"inst_name":       "c1/n1",
		"name":            "n1",
		"ip_addr":         "10.0.0.1",
		"os_version":      "Ubuntu 22.04",
		"kubelet_version": "v1.28.2",
		"role":            "control-plane,worker",
		"cpu":             4.0,
		"memory":          int64(2),
		"storage":         int64(1),
	}, r.Attributes())
}

func TestNormalizePodJoins(t *testing.T) {
	c := New(testSource).Normalize(clusterSamples())

	p1 := findRecord(t, c, domain.CategoryPod, "uid-p1")
	attrs := p1.Attributes()
	assert.Equal(t, "p1", attrs["name"])
	assert.Equal(t, "10.1.0.5", attrs["ip_addr"])
	assert.InDelta(t, 0.75, attrs["limit_cpu"], 1e-9)
	assert.Equal(t, int64(3), attrs["limit_memory"])
	assert.InDelta(t, 0.1, attrs["request_cpu"], 1e-9)
	assert.NotContains(t, attrs, "request_memory")
	assert.Equal(t, "c1/ns1/rs1", attrs["k8s_workload"])

	assocs := p1.Associations()
	require.Len(t, assocs, 2)
	assert.Equal(t, domain.DesiredAssociation{
		TargetModel: domain.ModelNode, TargetIdentity: "c1/n1",
		Kind: domain.RelationRun, RelationID: domain.RelationPodNode,
	}, assocs[0])
	assert.Equal(t, domain.ModelWorkload, assocs[1].TargetModel)
	assert.Equal(t, "c1/ns1/rs1", assocs[1].TargetIdentity)

	static := findRecord(t, c, domain.CategoryPod, "uid-static")
	assocs = static.Associations()
	require.Len(t, assocs, 2)
	assert.Equal(t, domain.ModelNode, assocs[0].TargetModel)
	assert.Equal(t, domain.ModelNamespace, assocs[1].TargetModel)
	assert.Equal(t, "c1/kube-system", assocs[1].TargetIdentity)
	assert.Equal(t, domain.RelationPodNamespace, assocs[1].RelationID)
}

func TestNormalizeDropsUnscheduledPods(t *testing.T) {
	samples := []domain.RawSample{
		sample(telemetry.MetricPodInfo, "1", "namespace", "ns1", "pod", "pending", "uid", "uid-pending"),
	}
	c := New(testSource).Normalize(samples)
	assert.Empty(t, c.Records[domain.CategoryPod])
}

func TestNormalizeUnitConversion(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  *int64
	}{
		{"two gib", "2147483648", int64Ptr(2)},
		{"one gib", "1073741824", int64Ptr(1)},
		{"truncates", "2147483647", int64Ptr(1)},
		{"below one gib", "536870912", int64Ptr(0)},
		{"exponent notation", "2.147483648e+09", int64Ptr(2)},
		{"suffixed quantity", "4Gi", int64Ptr(4)},
		{"zero is absent", "0", nil},
		{"garbage is absent", "lots", nil},
		{"empty is absent", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toGiB(tt.value))
		})
	}
}

func TestToCores(t *testing.T) {
	v := toCores("500m")
	require.NotNil(t, v)
	assert.InDelta(t, 0.5, *v, 1e-9)

	v = toCores("2")
	require.NotNil(t, v)
	assert.Equal(t, 2.0, *v)
}

func TestNormalizeIdentityUniqueness(t *testing.T) {
	samples := append(clusterSamples(),
		sample(telemetry.MetricNamespaceLabels, "1", "namespace", "ns1"),
		sample(telemetry.MetricDeploymentLabels, "1", "namespace", "ns1", "deployment", "dep1"),
		sample(telemetry.MetricNodeInfo, "1", "node", "n1", "internal_ip", "10.0.0.9"),
	)
	c := New(testSource).Normalize(samples)

	for category, records := range c.Records {
		seen := make(map[string]bool)
		for _, r := range records {
			key := r.Attributes().String(domain.AttrInstName)
			assert.False(t, seen[key], "duplicate %s identity %s", category, key)
			seen[key] = true
		}
	}

	// last observation wins
	n1 := findRecord(t, c, domain.CategoryNode, "c1/n1")
	assert.Equal(t, "10.0.0.9", n1.Attributes()["ip_addr"])
}

func TestNormalizeDeterministic(t *testing.T) {
	samples := clusterSamples()
	reversed := make([]domain.RawSample, len(samples))
	for i, s := range samples {
		reversed[len(samples)-1-i] = s
	}

	a := New(testSource).Normalize(samples)
	b := New(testSource).Normalize(reversed)
	for _, category := range domain.Categories {
		require.Equal(t, len(a.Records[category]), len(b.Records[category]))
		for i := range a.Records[category] {
			assert.Equal(t, a.Records[category][i].Attributes(), b.Records[category][i].Attributes())
		}
	}
}

func TestIsWorkloadKind(t *testing.T) {
	assert.True(t, IsWorkloadKind("ReplicaSet"))
	assert.True(t, IsWorkloadKind("statefulset"))
	assert.False(t, IsWorkloadKind("Node"))
	assert.False(t, IsWorkloadKind(""))
}

func int64Ptr(v int64) *int64 { return &v }
