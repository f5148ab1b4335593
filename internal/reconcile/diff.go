package reconcile

import (
	"k8s.io/klog/v2"

	"kubecmdb/internal/domain"
)

// Pending is a desired record matched to an existing stored entity
type Pending struct {
	ID       int64
	Record   domain.Record
	Previous domain.StoredEntity
}

// Plan is the outcome of diffing old against new state for one category
type Plan struct {
	Add    []domain.Record
	Update []Pending
	Delete []domain.StoredEntity
	// Skipped records lack part of their identity key and were not diffed
	Skipped []domain.Record
}

// Empty reports whether the plan has nothing to write
func (p Plan) Empty() bool {
	return len(p.Add) == 0 && len(p.Update) == 0 && len(p.Delete) == 0
}

// Diff keys old entities and new records by identity. A new identity absent
// from old is an addition, one present in old is an update inheriting the
// stored id, and an old identity absent from new is a deletion. Duplicate
// identities collapse, the last occurrence winning. Output order follows
// first appearance in the inputs.
func Diff(old []domain.StoredEntity, records []domain.Record, keys []string) Plan {
	var plan Plan

	oldOrder := make([]domain.IdentityKey, 0, len(old))
	oldMap := make(map[domain.IdentityKey]domain.StoredEntity, len(old))
	for _, e := range old {
		key, ok := domain.IdentityOf(e.Attributes, keys)
		if !ok {
			klog.V(2).InfoS("Stored entity has no identity key, ignoring", "model", e.ModelID, "id", e.ID)
			continue
		}
		if _, seen := oldMap[key]; !seen {
			oldOrder = append(oldOrder, key)
		}
		oldMap[key] = e
	}

	newOrder := make([]domain.IdentityKey, 0, len(records))
	newMap := make(map[domain.IdentityKey]domain.Record, len(records))
	for _, r := range records {
		key, ok := domain.IdentityOf(r.Attributes(), keys)
		if !ok {
			plan.Skipped = append(plan.Skipped, r)
			continue
		}
		if _, seen := newMap[key]; !seen {
			newOrder = append(newOrder, key)
		}
		newMap[key] = r
	}

	for _, key := range newOrder {
		r := newMap[key]
		if prev, ok := oldMap[key]; ok {
			plan.Update = append(plan.Update, Pending{ID: prev.ID, Record: r, Previous: prev})
		} else {
			plan.Add = append(plan.Add, r)
		}
	}
	for _, key := range oldOrder {
		if _, ok := newMap[key]; !ok {
			plan.Delete = append(plan.Delete, oldMap[key])
		}
	}
	return plan
}
