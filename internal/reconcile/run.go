package reconcile

import (
	"context"
	"fmt"
	"time"

	"kubecmdb/internal/domain"
	"kubecmdb/internal/repository"
	"kubecmdb/internal/schema"
)

// DefaultUniqueKeys is the identity key used when none is configured
var DefaultUniqueKeys = []string{domain.AttrInstName}

// Options tune a controller
type Options struct {
	// Organization is stamped on every written entity
	Organization []int64
	// UniqueKeys is the composite identity key used for diffing
	UniqueKeys []string
	// Workers bounds per-batch concurrency; values below 1 mean sequential
	Workers int
	// PruneAssociations deletes managed edges of updated entities that are no
	// longer desired
	PruneAssociations bool
	// EnsureCluster creates the cluster entity for the source if absent
	EnsureCluster bool
}

// RunContext is built once per reconciliation run and passed to every
// operation of that run. It is never shared across runs.
type RunContext struct {
	Source       string
	Organization []int64
	CollectTime  time.Time
	UniqueKeys   []string
	Workers      int
	Prune        bool

	validators map[string]*schema.Validator
}

// NewRunContext loads the attribute schema of every collected model (and the
// cluster model) and builds their validators
func NewRunContext(ctx context.Context, schemas repository.SchemaStore, source string, collectTime time.Time, opts Options) (*RunContext, error) {
	keys := opts.UniqueKeys
	if len(keys) == 0 {
		keys = DefaultUniqueKeys
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	rc := &RunContext{
		Source:       source,
		Organization: opts.Organization,
		CollectTime:  collectTime.UTC(),
		UniqueKeys:   keys,
		Workers:      workers,
		Prune:        opts.PruneAssociations,
		validators:   make(map[string]*schema.Validator),
	}

	models := []string{domain.ModelCluster}
	for _, c := range domain.Categories {
		models = append(models, c.ModelID())
	}
	for _, modelID := range models {
		attrs, err := schemas.GetAttributes(ctx, modelID)
		if err != nil {
			return nil, fmt.Errorf("load %s schema: %w", modelID, err)
		}
		rc.validators[modelID] = schema.New(modelID, attrs)
	}
	return rc, nil
}

// Validator returns the validator for a model. Models without a loaded
// schema get an empty validator.
func (rc *RunContext) Validator(modelID string) *schema.Validator {
	if v, ok := rc.validators[modelID]; ok {
		return v
	}
	return schema.New(modelID, nil)
}

// stamp adds the collection system fields to a record's attributes
func (rc *RunContext) stamp(modelID string, attrs domain.Attributes) domain.Attributes {
	out := attrs.Clone()
	out[domain.AttrModelID] = modelID
	out[domain.AttrOrganization] = rc.Organization
	out[domain.AttrCollectTask] = rc.Source
	out[domain.AttrAutoCollect] = true
	out[domain.AttrCollectTime] = rc.CollectTime.Format(time.RFC3339)
	return out
}
