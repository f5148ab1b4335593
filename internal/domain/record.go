package domain

import (
	"sort"

	"github.com/go-playground/validator/v10"
)

// Record is the desired state of one entity, built fresh from raw samples on
// every cycle. The set of implementations is closed: one per Category.
type Record interface {
	Category() Category
	// Attributes flattens the record into storage attributes. Absent
	// optional fields are omitted, never stored as zero values.
	Attributes() Attributes
	// Associations lists the edges the entity wants, in creation order.
	Associations() []DesiredAssociation

	isRecord()
}

// NamespaceRecord is the desired state of a k8s namespace
type NamespaceRecord struct {
	InstName string `validate:"required"`
	Name     string `validate:"required"`
	Cluster  string `validate:"required"`
}

func (NamespaceRecord) Category() Category { return CategoryNamespace }
func (NamespaceRecord) isRecord()          {}

func (r NamespaceRecord) Attributes() Attributes {
	return Attributes{AttrInstName: r.InstName, AttrName: r.Name}
}

func (r NamespaceRecord) Associations() []DesiredAssociation {
	return []DesiredAssociation{{
		TargetModel:    ModelCluster,
		TargetIdentity: r.Cluster,
		Kind:           RelationBelong,
		RelationID:     RelationNamespaceCluster,
	}}
}

// WorkloadRecord is the desired state of a k8s workload (deployment,
// replicaset, statefulset, ...). A workload with an owner associates to the
// owning workload; otherwise it associates to its namespace.
type WorkloadRecord struct {
	InstName     string `validate:"required"`
	Name         string `validate:"required"`
	WorkloadType string `validate:"required"`
	// Namespace is the namespace entity's identity (source/namespace)
	Namespace string `validate:"required"`
	OwnerKind *string
	OwnerName *string
	// ParentInstName is the owning workload's identity, set with the owner
	ParentInstName *string
}

func (WorkloadRecord) Category() Category { return CategoryWorkload }
func (WorkloadRecord) isRecord()          {}

// HasOwner reports whether the workload is owned by another workload
func (r WorkloadRecord) HasOwner() bool {
	return r.ParentInstName != nil && *r.ParentInstName != ""
}

func (r WorkloadRecord) Attributes() Attributes {
	attrs := Attributes{
		AttrInstName:    r.InstName,
		AttrName:        r.Name,
		"workload_type": r.WorkloadType,
	}
	if r.HasOwner() {
		setString(attrs, "owner_kind", r.OwnerKind)
		setString(attrs, "owner_name", r.OwnerName)
	} else {
		attrs["k8s_namespace"] = r.Namespace
	}
	return attrs
}

func (r WorkloadRecord) Associations() []DesiredAssociation {
	if r.HasOwner() {
		return []DesiredAssociation{{
			TargetModel:    ModelWorkload,
			TargetIdentity: *r.ParentInstName,
			Kind:           RelationGroup,
			RelationID:     RelationWorkloadWorkload,
		}}
	}
	return []DesiredAssociation{{
		TargetModel:    ModelNamespace,
		TargetIdentity: r.Namespace,
		Kind:           RelationBelong,
		RelationID:     RelationWorkloadNamespace,
	}}
}

// NodeRecord is the desired state of a k8s node. Every field other than the
// identity is optional: a node record is sparse.
type NodeRecord struct {
	InstName string `validate:"required"`
	Name     string `validate:"required"`
	Cluster  string `validate:"required"`

	IPAddr                  *string
	OSVersion               *string
	KernelVersion           *string
	KubeletVersion          *string
	ContainerRuntimeVersion *string
	PodCIDR                 *string
	Role                    *string

	// CPU in cores
	CPU *float64
	// Memory and Storage in GiB
	Memory  *int64
	Storage *int64
}

func (NodeRecord) Category() Category { return CategoryNode }
func (NodeRecord) isRecord()          {}

func (r NodeRecord) Attributes() Attributes {
	attrs := Attributes{AttrInstName: r.InstName, AttrName: r.Name}
	setString(attrs, "ip_addr", r.IPAddr)
	setString(attrs, "os_version", r.OSVersion)
	setString(attrs, "kernel_version", r.KernelVersion)
	setString(attrs, "kubelet_version", r.KubeletVersion)
	setString(attrs, "container_runtime_version", r.ContainerRuntimeVersion)
	setString(attrs, "pod_cidr", r.PodCIDR)
	setString(attrs, "role", r.Role)
	setFloat(attrs, "cpu", r.CPU)
	setInt(attrs, "memory", r.Memory)
	setInt(attrs, "storage", r.Storage)
	return attrs
}

func (r NodeRecord) Associations() []DesiredAssociation {
	return []DesiredAssociation{{
		TargetModel:    ModelCluster,
		TargetIdentity: r.Cluster,
		Kind:           RelationGroup,
		RelationID:     RelationNodeCluster,
	}}
}

// PodRecord is the desired state of a k8s pod. A pod always runs on a node
// and belongs to either its controlling workload or its namespace.
type PodRecord struct {
	InstName string `validate:"required"`
	Name     string `validate:"required"`
	// Node is the node entity's identity (source/node)
	Node      string `validate:"required"`
	Namespace string `validate:"required"`
	// Workload is the controlling workload's identity, nil when the pod has
	// no recognized controller
	Workload *string

	IPAddr        *string
	LimitCPU      *float64
	LimitMemory   *int64
	RequestCPU    *float64
	RequestMemory *int64
}

func (PodRecord) Category() Category { return CategoryPod }
func (PodRecord) isRecord()          {}

// HasWorkload reports whether the pod is controlled by a recognized workload
func (r PodRecord) HasWorkload() bool {
	return r.Workload != nil && *r.Workload != ""
}

func (r PodRecord) Attributes() Attributes {
	attrs := Attributes{AttrInstName: r.InstName, AttrName: r.Name}
	setString(attrs, "ip_addr", r.IPAddr)
	setFloat(attrs, "limit_cpu", r.LimitCPU)
	setInt(attrs, "limit_memory", r.LimitMemory)
	setFloat(attrs, "request_cpu", r.RequestCPU)
	setInt(attrs, "request_memory", r.RequestMemory)
	if r.HasWorkload() {
		attrs["k8s_workload"] = *r.Workload
	} else {
		attrs["k8s_namespace"] = r.Namespace
	}
	return attrs
}

func (r PodRecord) Associations() []DesiredAssociation {
	assos := []DesiredAssociation{{
		TargetModel:    ModelNode,
		TargetIdentity: r.Node,
		Kind:           RelationRun,
		RelationID:     RelationPodNode,
	}}
	if r.HasWorkload() {
		return append(assos, DesiredAssociation{
			TargetModel:    ModelWorkload,
			TargetIdentity: *r.Workload,
			Kind:           RelationGroup,
			RelationID:     RelationPodWorkload,
		})
	}
	return append(assos, DesiredAssociation{
		TargetModel:    ModelNamespace,
		TargetIdentity: r.Namespace,
		Kind:           RelationGroup,
		RelationID:     RelationPodNamespace,
	})
}

var recordValidator = validator.New()

// ValidateRecord checks that a record's identity and required fields are set
func ValidateRecord(r Record) error {
	return recordValidator.Struct(r)
}

// Collection is the output of one normalization pass: desired records per
// category.
type Collection struct {
	Source  string
	Records map[Category][]Record
}

// NewCollection creates an empty collection for source
func NewCollection(source string) *Collection {
	records := make(map[Category][]Record, len(Categories))
	for _, c := range Categories {
		records[c] = make([]Record, 0)
	}
	return &Collection{Source: source, Records: records}
}

// Add appends a record under its own category
func (c *Collection) Add(r Record) {
	c.Records[r.Category()] = append(c.Records[r.Category()], r)
}

// Len returns the total number of records across categories
func (c *Collection) Len() int {
	n := 0
	for _, rs := range c.Records {
		n += len(rs)
	}
	return n
}

// SortByIdentity orders each category's records by inst_name
func (c *Collection) SortByIdentity() {
	for _, rs := range c.Records {
		sort.SliceStable(rs, func(i, j int) bool {
			return rs[i].Attributes().String(AttrInstName) < rs[j].Attributes().String(AttrInstName)
		})
	}
}

func setString(attrs Attributes, key string, v *string) {
	if v != nil && *v != "" {
		attrs[key] = *v
	}
}

func setFloat(attrs Attributes, key string, v *float64) {
	if v != nil {
		attrs[key] = *v
	}
}

func setInt(attrs Attributes, key string, v *int64) {
	if v != nil {
		attrs[key] = *v
	}
}
