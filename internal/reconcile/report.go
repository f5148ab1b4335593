package reconcile

import (
	"errors"
	"time"

	"go.uber.org/multierr"

	"kubecmdb/internal/domain"
)

// AssociationStatus is the outcome of one desired association
type AssociationStatus string

const (
	AssociationCreated AssociationStatus = "created"
	// AssociationExists means the edge was already present
	AssociationExists AssociationStatus = "exists"
)

// AssociationSuccess is a resolved association
type AssociationSuccess struct {
	Association domain.Association `json:"association"`
	Status      AssociationStatus  `json:"status"`
	Message     string             `json:"message,omitempty"`
}

// AssociationFailure is a desired association that could not be made
type AssociationFailure struct {
	Desired domain.DesiredAssociation `json:"desired"`
	Error   string                    `json:"error"`
}

// AssociationReport collects the association outcomes of one entity
type AssociationReport struct {
	Success []AssociationSuccess `json:"success"`
	Failed  []AssociationFailure `json:"failed"`
}

// Success is a written (or deleted) entity
type Success struct {
	Entity       domain.StoredEntity `json:"inst_info"`
	Associations *AssociationReport  `json:"assos_result,omitempty"`

	record domain.Record
}

// Failure is an item whose write failed. Record is the input that failed
// and is kept for in-process consumers only.
type Failure struct {
	Identity   string            `json:"identity"`
	Attributes domain.Attributes `json:"instance_info"`
	Record     domain.Record     `json:"-"`
	Error      string            `json:"error"`

	err error
}

// Err returns the underlying error
func (f Failure) Err() error {
	if f.err != nil {
		return f.err
	}
	return errors.New(f.Error)
}

func newFailure(identity string, attrs domain.Attributes, r domain.Record, err error) Failure {
	return Failure{Identity: identity, Attributes: attrs, Record: r, Error: err.Error(), err: err}
}

// BatchReport is the outcome of one batch. A nil report means the batch was
// empty and the store was not touched.
type BatchReport struct {
	Success []Success `json:"success"`
	Failed  []Failure `json:"failed"`
}

// Err combines the batch failures, or returns nil
func (b *BatchReport) Err() error {
	if b == nil {
		return nil
	}
	var err error
	for _, f := range b.Failed {
		err = multierr.Append(err, f.Err())
	}
	return err
}

// AssociationCounts sums association outcomes across the batch
func (b *BatchReport) AssociationCounts() (created, exists, failed int) {
	if b == nil {
		return 0, 0, 0
	}
	for _, s := range b.Success {
		if s.Associations == nil {
			continue
		}
		for _, a := range s.Associations.Success {
			if a.Status == AssociationExists {
				exists++
			} else {
				created++
			}
		}
		failed += len(s.Associations.Failed)
	}
	return created, exists, failed
}

// CategoryReport is the outcome of reconciling one category
type CategoryReport struct {
	Add     *BatchReport         `json:"add"`
	Update  *BatchReport         `json:"update"`
	Delete  *BatchReport         `json:"delete"`
	Skipped []string             `json:"skipped,omitempty"`
	Pruned  []domain.Association `json:"pruned,omitempty"`
	// Error is set when the category could not be reconciled at all
	Error string `json:"error,omitempty"`
}

// Batches returns the non-nil batches keyed by operation name
func (c *CategoryReport) Batches() map[string]*BatchReport {
	out := make(map[string]*BatchReport, 3)
	for op, b := range map[string]*BatchReport{"add": c.Add, "update": c.Update, "delete": c.Delete} {
		if b != nil {
			out[op] = b
		}
	}
	return out
}

// Err combines every failure of the category
func (c *CategoryReport) Err() error {
	var err error
	if c.Error != "" {
		err = errors.New(c.Error)
	}
	return multierr.Combine(err, c.Delete.Err(), c.Add.Err(), c.Update.Err())
}

// CycleReport is the outcome of one reconciliation run
type CycleReport struct {
	RunID       string                              `json:"run_id"`
	Source      string                              `json:"source"`
	CollectTime time.Time                           `json:"collect_time"`
	Duration    time.Duration                       `json:"duration"`
	Categories  map[domain.Category]*CategoryReport `json:"categories"`
}

// Summary counts successes and failures across the whole run
type Summary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Pruned    int `json:"pruned"`
}

// Summary totals the report
func (r *CycleReport) Summary() Summary {
	var s Summary
	for _, c := range r.Categories {
		for _, b := range c.Batches() {
			s.Succeeded += len(b.Success)
			s.Failed += len(b.Failed)
		}
		s.Skipped += len(c.Skipped)
		s.Pruned += len(c.Pruned)
	}
	return s
}

// Err combines every failure of the run in category order
func (r *CycleReport) Err() error {
	var err error
	for _, cat := range domain.Categories {
		if c, ok := r.Categories[cat]; ok {
			err = multierr.Append(err, c.Err())
		}
	}
	return err
}
