package normalize

import (
	"k8s.io/utils/ptr"

	"kubecmdb/internal/domain"
	"kubecmdb/internal/telemetry"
)

type podResourceKey struct {
	namespace string
	pod       string
	resource  string
}

// podResources sums container quantities per pod and resource
type podResources map[podResourceKey]float64

func (r podResources) add(s domain.RawSample) {
	v, ok := parseQuantity(s.Value)
	if !ok {
		return
	}
	r[podResourceKey{s.Attr("namespace"), s.Attr("pod"), s.Attr("resource")}] += v
}

func (r podResources) cores(namespace, pod string) *float64 {
	v, ok := r[podResourceKey{namespace, pod, "cpu"}]
	if !ok || v == 0 {
		return nil
	}
	return ptr.To(v)
}

func (r podResources) gib(namespace, pod string) *int64 {
	v, ok := r[podResourceKey{namespace, pod, "memory"}]
	if !ok || v == 0 {
		return nil
	}
	return ptr.To(int64(v / gib))
}

func normalizePods(source string, samples []domain.RawSample) []domain.Record {
	var infos []domain.RawSample
	limits, requests := make(podResources), make(podResources)

	for _, s := range samples {
		switch s.MetricName {
		case telemetry.MetricPodInfo:
			infos = append(infos, s)
		case telemetry.MetricPodLimits:
			limits.add(s)
		case telemetry.MetricPodRequests:
			requests.add(s)
		}
	}

	records := make([]domain.Record, 0, len(infos))
	for _, s := range infos {
		ns, pod, node := s.Attr("namespace"), s.Attr("pod"), s.Attr("node")
		record := domain.PodRecord{
			InstName:      s.Attr("uid"),
			Name:          pod,
			Namespace:     namespaceIdentity(source, ns),
			IPAddr:        optional(s.Attr("pod_ip")),
			LimitCPU:      limits.cores(ns, pod),
			LimitMemory:   limits.gib(ns, pod),
			RequestCPU:    requests.cores(ns, pod),
			RequestMemory: requests.gib(ns, pod),
		}
		// Unscheduled pods have no node and are dropped by validation
		if node != "" {
			record.Node = join(source, node)
		}

		owner := s.Attr("created_by_name")
		if owner != "" && ns != "" && IsWorkloadKind(s.Attr("created_by_kind")) {
			record.Workload = ptr.To(join(source, ns, owner))
		}

		records = append(records, record)
	}
	return records
}
