package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"

	"kubecmdb/internal/domain"
	"kubecmdb/internal/repository"
)

// ErrTargetNotFound is recorded when an association target is not stored
var ErrTargetNotFound = errors.New("association target not found")

type edgeKey struct {
	relation string
	target   int64
}

// Associate resolves and creates the desired associations of every entity
// written in the given batches. Only entities from updated are considered for
// pruning. It returns the edges pruned.
func (e *Engine) Associate(ctx context.Context, rc *RunContext, category domain.Category, added, updated *BatchReport) []domain.Association {
	type item struct {
		success *Success
		prune   bool
	}
	var items []item
	if added != nil {
		for i := range added.Success {
			items = append(items, item{success: &added.Success[i]})
		}
	}
	if updated != nil {
		for i := range updated.Success {
			items = append(items, item{success: &updated.Success[i], prune: rc.Prune})
		}
	}

	managed := sets.New(category.ManagedRelations()...)
	var (
		mu     sync.Mutex
		pruned []domain.Association
	)
	forEach(rc.Workers, len(items), func(i int) {
		it := items[i]
		report, keep, complete := e.associateOne(ctx, it.success)
		it.success.Associations = report
		if !it.prune || !complete {
			return
		}
		removed := e.prune(ctx, it.success.Entity, managed, keep)
		if len(removed) > 0 {
			mu.Lock()
			pruned = append(pruned, removed...)
			mu.Unlock()
		}
	})
	return pruned
}

// associateOne creates the desired edges of one entity. It returns the set of
// edges that should exist, and whether every target was decided (found or
// definitely absent).
func (e *Engine) associateOne(ctx context.Context, s *Success) (*AssociationReport, sets.Set[edgeKey], bool) {
	report := &AssociationReport{Success: []AssociationSuccess{}, Failed: []AssociationFailure{}}
	keep := sets.New[edgeKey]()
	complete := true
	if s.record == nil {
		return report, keep, complete
	}

	for _, d := range s.record.Associations() {
		target, err := e.resolve(ctx, d)
		if err != nil {
			if !errors.Is(err, ErrTargetNotFound) {
				complete = false
			}
			klog.V(2).InfoS("Association target unresolved", "source", s.Entity.ID, "relation", d.RelationID, "target", d.TargetIdentity, "err", err)
			report.Failed = append(report.Failed, AssociationFailure{Desired: d, Error: err.Error()})
			continue
		}

		assoc := domain.Association{
			RelationID:  d.RelationID,
			SourceModel: s.Entity.ModelID,
			SourceID:    s.Entity.ID,
			TargetModel: d.TargetModel,
			TargetID:    target.ID,
			Kind:        d.Kind,
		}
		created, err := e.store.CreateEdge(ctx, assoc, assoc.DedupKey())
		switch {
		case errors.Is(err, repository.ErrEdgeExists):
			keep.Insert(edgeKey{relation: d.RelationID, target: target.ID})
			report.Success = append(report.Success, AssociationSuccess{
				Association: assoc,
				Status:      AssociationExists,
				Message:     fmt.Sprintf("%s already associated with %s %s", s.Entity.InstName(), d.TargetModel, d.TargetIdentity),
			})
		case err != nil:
			complete = false
			report.Failed = append(report.Failed, AssociationFailure{Desired: d, Error: err.Error()})
		default:
			keep.Insert(edgeKey{relation: d.RelationID, target: target.ID})
			report.Success = append(report.Success, AssociationSuccess{Association: *created, Status: AssociationCreated})
		}
	}
	return report, keep, complete
}

// resolve finds the stored target of a desired association by model and
// identity
func (e *Engine) resolve(ctx context.Context, d domain.DesiredAssociation) (*domain.StoredEntity, error) {
	found, _, err := e.store.QueryEntities(ctx, repository.EntityQuery{
		Filters: []repository.Filter{
			repository.Eq(domain.AttrModelID, d.TargetModel),
			repository.Eq(domain.AttrInstName, d.TargetIdentity),
		},
		Page: &repository.Page{Number: 1, Size: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("lookup %s %s: %w", d.TargetModel, d.TargetIdentity, err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrTargetNotFound, d.TargetModel, d.TargetIdentity)
	}
	return &found[0], nil
}

// prune removes managed outgoing edges of ent that are not in keep
func (e *Engine) prune(ctx context.Context, ent domain.StoredEntity, managed sets.Set[string], keep sets.Set[edgeKey]) []domain.Association {
	edges, err := e.store.ListEdges(ctx, ent.ID)
	if err != nil {
		klog.ErrorS(err, "List edges for pruning failed", "id", ent.ID)
		return nil
	}
	var removed []domain.Association
	for _, edge := range edges {
		if !managed.Has(edge.RelationID) || keep.Has(edgeKey{relation: edge.RelationID, target: edge.TargetID}) {
			continue
		}
		if err := e.store.DeleteEdge(ctx, edge.ID); err != nil {
			klog.ErrorS(err, "Prune edge failed", "id", edge.ID, "relation", edge.RelationID)
			continue
		}
		klog.V(2).InfoS("Pruned stale association", "source", ent.ID, "relation", edge.RelationID, "target", edge.TargetID)
		removed = append(removed, edge)
	}
	return removed
}
