package reconcile

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"kubecmdb/internal/domain"
	"kubecmdb/internal/repository"
)

// Engine reconciles one category at a time against a GraphStore
type Engine struct {
	store repository.GraphStore
}

// NewEngine creates an engine over store
func NewEngine(store repository.GraphStore) *Engine {
	return &Engine{store: store}
}

// Reconcile converges the stored entities of category collected from
// rc.Source onto records. Per-item failures are reported, never returned.
func (e *Engine) Reconcile(ctx context.Context, rc *RunContext, category domain.Category, records []domain.Record) *CategoryReport {
	modelID := category.ModelID()
	report := &CategoryReport{}

	old, err := e.Previous(ctx, rc, modelID)
	if err != nil {
		klog.ErrorS(err, "Load previous state failed", "category", category)
		report.Error = err.Error()
		return report
	}

	plan := Diff(old, records, rc.UniqueKeys)
	for _, r := range plan.Skipped {
		report.Skipped = append(report.Skipped, r.Attributes().String(domain.AttrName))
	}
	if len(plan.Skipped) > 0 {
		klog.InfoS("Records without identity skipped", "category", category, "count", len(plan.Skipped))
	}

	report.Add, report.Update, report.Delete = e.Apply(ctx, rc, modelID, plan)
	report.Pruned = e.Associate(ctx, rc, category, report.Add, report.Update)

	klog.V(1).InfoS("Category reconciled", "category", category,
		"add", len(plan.Add), "update", len(plan.Update), "delete", len(plan.Delete), "pruned", len(report.Pruned))
	return report
}

// Previous returns the entities of modelID last collected from rc.Source
func (e *Engine) Previous(ctx context.Context, rc *RunContext, modelID string) ([]domain.StoredEntity, error) {
	entities, _, err := e.store.QueryEntities(ctx, repository.EntityQuery{
		Filters: []repository.Filter{
			repository.Eq(domain.AttrModelID, modelID),
			repository.Eq(domain.AttrCollectTask, rc.Source),
		},
		Order: domain.AttrInstName,
	})
	if err != nil {
		return nil, fmt.Errorf("query %s entities: %w", modelID, err)
	}
	return entities, nil
}
