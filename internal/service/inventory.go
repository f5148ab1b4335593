package service

import (
	"context"
	"fmt"

	"kubecmdb/internal/codec"
	"kubecmdb/internal/domain"
	"kubecmdb/internal/repository"
)

// DefaultPageSize applies when a listing asks for no page size
const DefaultPageSize = 100

// EntityPage is one page of a model's entities
type EntityPage struct {
	Entities []domain.StoredEntity `json:"info"`
	Count    int                   `json:"count"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// InventoryService serves read access to reconciled entities
type InventoryService struct {
	store repository.GraphStore
}

// NewInventoryService creates an inventory service
func NewInventoryService(store repository.GraphStore) *InventoryService {
	return &InventoryService{store: store}
}

// ListEntities returns one page of modelID's entities matching filters
func (s *InventoryService) ListEntities(ctx context.Context, modelID string, filters []repository.Filter, page, size int, order string) (*EntityPage, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if order == "" {
		order = domain.AttrInstName
	}

	all := append([]repository.Filter{repository.Eq(domain.AttrModelID, modelID)}, filters...)
	entities, count, err := s.store.QueryEntities(ctx, repository.EntityQuery{
		Filters: all,
		Page:    &repository.Page{Number: page, Size: size},
		Order:   order,
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", modelID, err)
	}
	if entities == nil {
		entities = []domain.StoredEntity{}
	}
	return &EntityPage{Entities: entities, Count: count, Page: page, PageSize: size}, nil
}

// Associations returns the outgoing associations of an entity
func (s *InventoryService) Associations(ctx context.Context, id int64) ([]domain.Association, error) {
	edges, err := s.store.ListEdges(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list associations of %d: %w", id, err)
	}
	if edges == nil {
		edges = []domain.Association{}
	}
	return edges, nil
}

// snapshotModels are exported in this order
var snapshotModels = []string{
	domain.ModelCluster,
	domain.ModelNode,
	domain.ModelNamespace,
	domain.ModelWorkload,
	domain.ModelPod,
}

// Snapshot gathers every entity collected from source, plus that source's
// cluster entity, together with their outgoing associations. An empty
// source exports everything.
func (s *InventoryService) Snapshot(ctx context.Context, source string) (*codec.Snapshot, error) {
	snap := &codec.Snapshot{
		Source:       source,
		Entities:     []domain.StoredEntity{},
		Associations: []domain.Association{},
	}
	for _, modelID := range snapshotModels {
		filters := []repository.Filter{repository.Eq(domain.AttrModelID, modelID)}
		if source != "" {
			if modelID == domain.ModelCluster {
				filters = append(filters, repository.Eq(domain.AttrInstName, source))
			} else {
				filters = append(filters, repository.Eq(domain.AttrCollectTask, source))
			}
		}
		entities, _, err := s.store.QueryEntities(ctx, repository.EntityQuery{
			Filters: filters,
			Order:   domain.AttrInstName,
		})
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", modelID, err)
		}
		for _, e := range entities {
			edges, err := s.store.ListEdges(ctx, e.ID)
			if err != nil {
				return nil, fmt.Errorf("snapshot associations of %d: %w", e.ID, err)
			}
			snap.Associations = append(snap.Associations, edges...)
		}
		snap.Entities = append(snap.Entities, entities...)
	}
	return snap, nil
}
