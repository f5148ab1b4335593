package normalize

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/utils/ptr"

	"kubecmdb/internal/domain"
	"kubecmdb/internal/telemetry"
)

// workloadKind describes a workload label metric
type workloadKind struct {
	// nameAttr is the sample attribute holding the workload's name
	nameAttr string
	kind     string
}

var workloadKinds = map[string]workloadKind{
	telemetry.MetricDeploymentLabels:  {nameAttr: "deployment", kind: "deployment"},
	telemetry.MetricDaemonSetLabels:   {nameAttr: "daemonset", kind: "daemonset"},
	telemetry.MetricStatefulSetLabels: {nameAttr: "statefulset", kind: "statefulset"},
	telemetry.MetricJobLabels:         {nameAttr: "job_name", kind: "job"},
	telemetry.MetricCronJobLabels:     {nameAttr: "cronjob", kind: "cronjob"},
	telemetry.MetricReplicaSetLabels:  {nameAttr: "replicaset", kind: "replicaset"},
}

// recognizedKinds are the controller kinds that map to a workload entity
var recognizedKinds = func() sets.Set[string] {
	s := sets.New[string]()
	for _, k := range workloadKinds {
		s.Insert(k.kind)
	}
	return s
}()

// IsWorkloadKind reports whether kind (any case) is a recognized workload kind
func IsWorkloadKind(kind string) bool {
	return recognizedKinds.Has(strings.ToLower(kind))
}

type ownerKey struct {
	namespace string
	name      string
}

func normalizeWorkloads(source string, samples []domain.RawSample) []domain.Record {
	owners := make(map[ownerKey]domain.RawSample)
	var labels, replicaSets []domain.RawSample

	for _, s := range samples {
		switch s.MetricName {
		case telemetry.MetricReplicaSetOwner:
			owners[ownerKey{s.Attr("namespace"), s.Attr("replicaset")}] = s
		case telemetry.MetricReplicaSetLabels:
			replicaSets = append(replicaSets, s)
		default:
			labels = append(labels, s)
		}
	}

	// Parents first, so a ReplicaSet's Deployment precedes it in the output
	labels = append(labels, replicaSets...)

	records := make([]domain.Record, 0, len(labels))
	for _, s := range labels {
		kind, ok := workloadKinds[s.MetricName]
		if !ok {
			continue
		}
		ns := s.Attr("namespace")
		name := s.Attr(kind.nameAttr)
		record := domain.WorkloadRecord{
			Name:         name,
			WorkloadType: kind.kind,
			Namespace:    namespaceIdentity(source, ns),
		}
		if ns != "" && name != "" {
			record.InstName = join(source, ns, name)
		}

		if s.MetricName == telemetry.MetricReplicaSetLabels {
			owner, found := owners[ownerKey{ns, name}]
			ownerKind := strings.ToLower(owner.Attr("owner_kind"))
			ownerName := owner.Attr("owner_name")
			if found && ownerName != "" && recognizedKinds.Has(ownerKind) {
				record.OwnerKind = ptr.To(ownerKind)
				record.OwnerName = ptr.To(ownerName)
				record.ParentInstName = ptr.To(join(source, ns, ownerName))
			}
		}

		records = append(records, record)
	}
	return records
}
