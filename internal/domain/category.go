package domain

import "fmt"

// Category is one of the collection categories. Each category owns its own
// join logic over raw samples and maps to exactly one model.
type Category string

const (
	CategoryNode      Category = "node"
	CategoryNamespace Category = "namespace"
	CategoryWorkload  Category = "workload"
	CategoryPod       Category = "pod"
)

// Model identifiers in the configuration graph
const (
	ModelCluster   = "k8s_cluster"
	ModelNode      = "k8s_node"
	ModelNamespace = "k8s_namespace"
	ModelWorkload  = "k8s_workload"
	ModelPod       = "k8s_pod"
)

// Categories lists every category in reconciliation order. Association
// targets of a category always live in an earlier category (or the
// cluster), so callers must process them in this order.
var Categories = []Category{
	CategoryNode,
	CategoryNamespace,
	CategoryWorkload,
	CategoryPod,
}

// ModelID returns the model a category's records are stored under
func (c Category) ModelID() string {
	switch c {
	case CategoryNode:
		return ModelNode
	case CategoryNamespace:
		return ModelNamespace
	case CategoryWorkload:
		return ModelWorkload
	case CategoryPod:
		return ModelPod
	}
	return ""
}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	return c.ModelID() != ""
}

// ParseCategory converts a string to a Category
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}
