package telemetry

import (
	"sort"

	"kubecmdb/internal/domain"
)

// kube-state-metrics names consumed per category
const (
	MetricNamespaceLabels = "kube_namespace_labels"

	MetricDeploymentLabels  = "kube_deployment_labels"
	MetricDaemonSetLabels   = "kube_daemonset_labels"
	MetricStatefulSetLabels = "kube_statefulset_labels"
	MetricJobLabels         = "kube_job_labels"
	MetricCronJobLabels     = "kube_cronjob_labels"
	MetricReplicaSetLabels  = "kube_replicaset_labels"
	MetricReplicaSetOwner   = "kube_replicaset_owner"

	MetricNodeInfo     = "kube_node_info"
	MetricNodeRole     = "kube_node_role"
	MetricNodeCapacity = "kube_node_status_capacity"

	MetricPodInfo     = "kube_pod_info"
	MetricPodLimits   = "kube_pod_container_resource_limits"
	MetricPodRequests = "kube_pod_container_resource_requests"
)

// AttrSource is the sample attribute carrying the cluster/source identifier
const AttrSource = "instance_id"

// Catalog is the static metric-name set per category
var Catalog = map[domain.Category][]string{
	domain.CategoryNamespace: {MetricNamespaceLabels},
	domain.CategoryWorkload: {
		MetricDeploymentLabels,
		MetricDaemonSetLabels,
		MetricStatefulSetLabels,
		MetricJobLabels,
		MetricCronJobLabels,
		MetricReplicaSetLabels,
		MetricReplicaSetOwner,
	},
	domain.CategoryNode: {MetricNodeInfo, MetricNodeRole, MetricNodeCapacity},
	domain.CategoryPod:  {MetricPodInfo, MetricPodLimits, MetricPodRequests},
}

var metricCategory = func() map[string]domain.Category {
	m := make(map[string]domain.Category)
	for c, names := range Catalog {
		for _, n := range names {
			m[n] = c
		}
	}
	return m
}()

// CategoryOf returns the category a metric name belongs to
func CategoryOf(metric string) (domain.Category, bool) {
	c, ok := metricCategory[metric]
	return c, ok
}

// AllMetrics returns every metric name in the catalog, sorted
func AllMetrics() []string {
	names := make([]string, 0, len(metricCategory))
	for n := range metricCategory {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
