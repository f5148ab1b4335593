package domain

// RelationKind is the association kind between two models
type RelationKind string

const (
	RelationBelong RelationKind = "belong"
	RelationGroup  RelationKind = "group"
	RelationRun    RelationKind = "run"
)

// Relation schema identifiers, formed as <src>_<kind>_<dst>
const (
	RelationNamespaceCluster  = "k8s_namespace_belong_k8s_cluster"
	RelationNodeCluster       = "k8s_node_group_k8s_cluster"
	RelationWorkloadWorkload  = "k8s_workload_group_k8s_workload"
	RelationWorkloadNamespace = "k8s_workload_belong_k8s_namespace"
	RelationPodWorkload       = "k8s_pod_group_k8s_workload"
	RelationPodNamespace      = "k8s_pod_group_k8s_namespace"
	RelationPodNode           = "k8s_pod_run_k8s_node"
)

// ManagedRelations returns the relation schemas a category creates on its own.
// Only edges with these relation ids are candidates for pruning.
func (c Category) ManagedRelations() []string {
	switch c {
	case CategoryNode:
		return []string{RelationNodeCluster}
	case CategoryNamespace:
		return []string{RelationNamespaceCluster}
	case CategoryWorkload:
		return []string{RelationWorkloadWorkload, RelationWorkloadNamespace}
	case CategoryPod:
		return []string{RelationPodNode, RelationPodWorkload, RelationPodNamespace}
	}
	return nil
}

// DesiredAssociation describes an edge an entity wants to have once written.
// The target is addressed by model and identity, never by storage id.
type DesiredAssociation struct {
	TargetModel    string       `json:"model_id"`
	TargetIdentity string       `json:"inst_name"`
	Kind           RelationKind `json:"asst_id"`
	RelationID     string       `json:"model_asst_id"`
}

// Association is a directed, typed edge between two stored entities
type Association struct {
	ID          int64        `json:"_id,omitempty"`
	RelationID  string       `json:"model_asst_id"`
	SourceModel string       `json:"src_model_id"`
	SourceID    int64        `json:"src_inst_id"`
	TargetModel string       `json:"dst_model_id"`
	TargetID    int64        `json:"dst_inst_id"`
	Kind        RelationKind `json:"asst_id"`
}

// DedupKey identifies an association for duplicate detection. Two edges with
// the same relation between the same endpoints are the same edge.
func (a Association) DedupKey() string {
	return a.RelationID
}
