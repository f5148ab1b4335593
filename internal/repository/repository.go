package repository

import (
	"context"
	"errors"

	"kubecmdb/internal/domain"
	"kubecmdb/internal/schema"
)

var (
	// ErrNotFound is returned when an entity or edge does not exist
	ErrNotFound = errors.New("not found")
	// ErrEdgeExists is returned by CreateEdge when an edge with the same dedup
	// key already joins the same endpoints
	ErrEdgeExists = errors.New("association already exists")
)

// FilterType is the predicate applied by a Filter
type FilterType string

const (
	FilterEqual    FilterType = "str="
	FilterNotEqual FilterType = "str<>"
	FilterContains FilterType = "str*"
	FilterIn       FilterType = "list[]"
)

// Filter is a field predicate for QueryEntities. Field is an attribute name;
// "model_id" and "_id" address the entity's own columns.
type Filter struct {
	Field string     `json:"field"`
	Type  FilterType `json:"type"`
	Value any        `json:"value"`
}

// Eq builds an equality filter
func Eq(field string, value any) Filter {
	return Filter{Field: field, Type: FilterEqual, Value: value}
}

// Page limits a query to one page. Number starts at 1; a zero Size means
// no limit.
type Page struct {
	Number int
	Size   int
}

// EntityQuery selects entities
type EntityQuery struct {
	Filters []Filter
	Page    *Page
	// Order is an attribute name; prefix with "-" for descending
	Order string
}

// GraphStore is the entity and edge capability consumed by reconciliation.
// Writes consult the supplied validator before mutating anything.
type GraphStore interface {
	// QueryEntities returns the matching entities of one page and the total
	// match count
	QueryEntities(ctx context.Context, q EntityQuery) ([]domain.StoredEntity, int, error)
	CreateEntity(ctx context.Context, modelID string, attrs domain.Attributes, v *schema.Validator) (*domain.StoredEntity, error)
	// UpdateEntity replaces the entity's attributes
	UpdateEntity(ctx context.Context, modelID string, id int64, attrs domain.Attributes, v *schema.Validator) (*domain.StoredEntity, error)
	// DeleteEntity removes the entity and every edge touching it
	DeleteEntity(ctx context.Context, modelID string, id int64) error

	// CreateEdge stores a directed edge. dedupKey groups edges for duplicate
	// detection: a second edge with the same key between the same endpoints
	// fails with ErrEdgeExists.
	CreateEdge(ctx context.Context, edge domain.Association, dedupKey string) (*domain.Association, error)
	// ListEdges returns the edges leaving sourceID
	ListEdges(ctx context.Context, sourceID int64) ([]domain.Association, error)
	DeleteEdge(ctx context.Context, id int64) error
}

// SchemaStore serves model attribute schemas
type SchemaStore interface {
	GetAttributes(ctx context.Context, modelID string) ([]domain.AttributeSpec, error)
	SaveModel(ctx context.Context, model domain.ModelSpec) error
}
