package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"kubecmdb/internal/domain"
	"kubecmdb/internal/repository"
)

// Controller runs a full reconciliation over every category
type Controller struct {
	store   repository.GraphStore
	schemas repository.SchemaStore
	engine  *Engine
	opts    Options
}

// NewController creates a controller
func NewController(store repository.GraphStore, schemas repository.SchemaStore, opts Options) *Controller {
	return &Controller{
		store:   store,
		schemas: schemas,
		engine:  NewEngine(store),
		opts:    opts,
	}
}

// Run reconciles a normalized collection. It fails only when the run cannot
// start or the context is cancelled; item failures land in the report.
func (c *Controller) Run(ctx context.Context, collection *domain.Collection, collectTime time.Time) (*CycleReport, error) {
	start := time.Now()
	rc, err := NewRunContext(ctx, c.schemas, collection.Source, collectTime, c.opts)
	if err != nil {
		return nil, fmt.Errorf("prepare run: %w", err)
	}

	report := &CycleReport{
		RunID:       uuid.NewString(),
		Source:      collection.Source,
		CollectTime: rc.CollectTime,
		Categories:  make(map[domain.Category]*CategoryReport, len(domain.Categories)),
	}
	klog.InfoS("Reconciliation started", "run", report.RunID, "source", report.Source, "records", collection.Len())

	if c.opts.EnsureCluster {
		if err := c.ensureCluster(ctx, rc); err != nil {
			klog.ErrorS(err, "Ensure cluster failed", "source", rc.Source)
		}
	}

	for _, category := range domain.Categories {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		report.Categories[category] = c.engine.Reconcile(ctx, rc, category, collection.Records[category])
	}
	report.Duration = time.Since(start)

	summary := report.Summary()
	if err := report.Err(); err != nil {
		klog.InfoS("Reconciliation finished with failures", "run", report.RunID,
			"succeeded", summary.Succeeded, "failed", summary.Failed, "duration", report.Duration, "errors", err.Error())
	} else {
		klog.InfoS("Reconciliation finished", "run", report.RunID,
			"succeeded", summary.Succeeded, "duration", report.Duration)
	}
	return report, nil
}

// ensureCluster creates the cluster entity named after the source if absent
func (c *Controller) ensureCluster(ctx context.Context, rc *RunContext) error {
	found, _, err := c.store.QueryEntities(ctx, repository.EntityQuery{
		Filters: []repository.Filter{
			repository.Eq(domain.AttrModelID, domain.ModelCluster),
			repository.Eq(domain.AttrInstName, rc.Source),
		},
		Page: &repository.Page{Number: 1, Size: 1},
	})
	if err != nil {
		return fmt.Errorf("lookup cluster: %w", err)
	}
	if len(found) > 0 {
		return nil
	}
	attrs := rc.stamp(domain.ModelCluster, domain.Attributes{
		domain.AttrInstName: rc.Source,
		domain.AttrName:     rc.Source,
	})
	if _, err := c.store.CreateEntity(ctx, domain.ModelCluster, attrs, rc.Validator(domain.ModelCluster)); err != nil {
		return fmt.Errorf("create cluster: %w", err)
	}
	klog.InfoS("Created cluster entity", "source", rc.Source)
	return nil
}
