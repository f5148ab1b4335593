package reconcile

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"kubecmdb/internal/domain"
)

// forEach calls fn for every index on at most workers goroutines and waits
// for all of them. fn must not fail the group; item errors are recorded by fn.
func forEach(workers, n int, fn func(i int)) {
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range n {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

// runBatch writes items concurrently and collects per-item results in input
// order. An empty batch yields a nil report.
func runBatch[T any](workers int, items []T, write func(item T) (*Success, *Failure)) *BatchReport {
	if len(items) == 0 {
		return nil
	}
	successes := make([]*Success, len(items))
	failures := make([]*Failure, len(items))
	forEach(workers, len(items), func(i int) {
		successes[i], failures[i] = write(items[i])
	})

	report := &BatchReport{Success: []Success{}, Failed: []Failure{}}
	for i := range items {
		if failures[i] != nil {
			report.Failed = append(report.Failed, *failures[i])
			continue
		}
		report.Success = append(report.Success, *successes[i])
	}
	return report
}

// Apply executes a plan: deletions, then additions, then updates. Each batch
// completes before the next starts.
func (e *Engine) Apply(ctx context.Context, rc *RunContext, modelID string, plan Plan) (add, update, del *BatchReport) {
	del = e.deleteBatch(ctx, rc, modelID, plan.Delete)
	add = e.addBatch(ctx, rc, modelID, plan.Add)
	update = e.updateBatch(ctx, rc, modelID, plan.Update)
	return add, update, del
}

func (e *Engine) deleteBatch(ctx context.Context, rc *RunContext, modelID string, entities []domain.StoredEntity) *BatchReport {
	return runBatch(rc.Workers, entities, func(ent domain.StoredEntity) (*Success, *Failure) {
		if err := e.store.DeleteEntity(ctx, modelID, ent.ID); err != nil {
			klog.V(2).InfoS("Delete failed", "model", modelID, "id", ent.ID, "err", err)
			f := newFailure(identityOf(ent.Attributes, rc.UniqueKeys), ent.Attributes, nil,
				fmt.Errorf("delete %s %d: %w", modelID, ent.ID, err))
			return nil, &f
		}
		klog.V(4).InfoS("Deleted entity", "model", modelID, "id", ent.ID)
		return &Success{Entity: ent}, nil
	})
}

func (e *Engine) addBatch(ctx context.Context, rc *RunContext, modelID string, records []domain.Record) *BatchReport {
	v := rc.Validator(modelID)
	return runBatch(rc.Workers, records, func(r domain.Record) (*Success, *Failure) {
		attrs := rc.stamp(modelID, r.Attributes())
		created, err := e.store.CreateEntity(ctx, modelID, attrs, v)
		if err != nil {
			klog.V(2).InfoS("Create failed", "model", modelID, "record", r.Attributes().String(domain.AttrInstName), "err", err)
			f := newFailure(identityOf(attrs, rc.UniqueKeys), attrs, r, fmt.Errorf("create %s: %w", modelID, err))
			return nil, &f
		}
		klog.V(4).InfoS("Created entity", "model", modelID, "id", created.ID)
		return &Success{Entity: *created, record: r}, nil
	})
}

func (e *Engine) updateBatch(ctx context.Context, rc *RunContext, modelID string, pending []Pending) *BatchReport {
	v := rc.Validator(modelID)
	return runBatch(rc.Workers, pending, func(p Pending) (*Success, *Failure) {
		attrs := rc.stamp(modelID, p.Record.Attributes())
		updated, err := e.store.UpdateEntity(ctx, modelID, p.ID, attrs, v)
		if err != nil {
			klog.V(2).InfoS("Update failed", "model", modelID, "id", p.ID, "err", err)
			f := newFailure(identityOf(attrs, rc.UniqueKeys), attrs, p.Record,
				fmt.Errorf("update %s %d: %w", modelID, p.ID, err))
			return nil, &f
		}
		klog.V(4).InfoS("Updated entity", "model", modelID, "id", updated.ID)
		return &Success{Entity: *updated, record: p.Record}, nil
	})
}

func identityOf(attrs domain.Attributes, keys []string) string {
	if key, ok := domain.IdentityOf(attrs, keys); ok {
		return key.String()
	}
	return ""
}
