package normalize

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/utils/ptr"

	"kubecmdb/internal/domain"
	"kubecmdb/internal/telemetry"
)

type capacityKey struct {
	node     string
	resource string
}

func normalizeNodes(source string, samples []domain.RawSample) []domain.Record {
	var infos []domain.RawSample
	capacity := make(map[capacityKey]string)
	roles := make(map[string]sets.Set[string])

	for _, s := range samples {
		switch s.MetricName {
		case telemetry.MetricNodeInfo:
			infos = append(infos, s)
		case telemetry.MetricNodeRole:
			node, role := s.Attr("node"), s.Attr("role")
			if role == "" {
				continue
			}
			if roles[node] == nil {
				roles[node] = sets.New[string]()
			}
			roles[node].Insert(role)
		case telemetry.MetricNodeCapacity:
			capacity[capacityKey{s.Attr("node"), s.Attr("resource")}] = s.Value
		}
	}

	records := make([]domain.Record, 0, len(infos))
	for _, s := range infos {
		node := s.Attr("node")
		record := domain.NodeRecord{
			Name:                    node,
			Cluster:                 source,
			IPAddr:                  optional(s.Attr("internal_ip")),
			OSVersion:               optional(s.Attr("os_image")),
			KernelVersion:           optional(s.Attr("kernel_version")),
			KubeletVersion:          optional(s.Attr("kubelet_version")),
			ContainerRuntimeVersion: optional(s.Attr("container_runtime_version")),
			PodCIDR:                 optional(s.Attr("pod_cidr")),
		}
		if node != "" {
			record.InstName = join(source, node)
		}

		if v, ok := capacity[capacityKey{node, "cpu"}]; ok {
			record.CPU = toCores(v)
		}
		if v, ok := capacity[capacityKey{node, "memory"}]; ok {
			record.Memory = toGiB(v)
		}
		if v, ok := capacity[capacityKey{node, "ephemeral_storage"}]; ok {
			record.Storage = toGiB(v)
		}
		if r := roles[node]; r.Len() > 0 {
			record.Role = ptr.To(strings.Join(sets.List(r), ","))
		}

		records = append(records, record)
	}
	return records
}
