// Package metrics exposes Prometheus instrumentation for reconciliation
// cycles.
//
// Metrics are registered on a caller-supplied registerer so tests can use an
// isolated registry. The serve command exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"kubecmdb/internal/reconcile"
)

const namespace = "kubecmdb"

// Result label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the reconciliation collectors
type Metrics struct {
	// CyclesTotal counts finished cycles. Labels: source, result
	CyclesTotal *prometheus.CounterVec
	// CycleDuration observes cycle wall time. Labels: source
	CycleDuration *prometheus.HistogramVec
	// ItemsTotal counts written items. Labels: category, operation, result
	ItemsTotal *prometheus.CounterVec
	// AssociationsTotal counts association outcomes. Labels: category, status
	AssociationsTotal *prometheus.CounterVec
	// SkippedTotal counts records without identity. Labels: category
	SkippedTotal *prometheus.CounterVec
	// PrunedTotal counts stale associations removed. Labels: category
	PrunedTotal *prometheus.CounterVec
	// LastSuccess is the unix time of the last cycle without failures
	LastSuccess *prometheus.GaugeVec
}

// New creates and registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Reconciliation cycles by source and result",
		}, []string{"source", "result"}),
		CycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Reconciliation cycle duration",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"source"}),
		ItemsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Entity writes by category, operation and result",
		}, []string{"category", "operation", "result"}),
		AssociationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "associations_total",
			Help:      "Association outcomes by category and status",
		}, []string{"category", "status"}),
		SkippedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_records_total",
			Help:      "Records skipped for missing identity",
		}, []string{"category"}),
		PrunedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_associations_total",
			Help:      "Stale associations deleted",
		}, []string{"category"}),
		LastSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle without failures",
		}, []string{"source"}),
	}
}

// ObserveCycle records a finished cycle
func (m *Metrics) ObserveCycle(report *reconcile.CycleReport) {
	result := ResultSuccess
	if report.Err() != nil {
		result = ResultFailure
	}
	m.CyclesTotal.WithLabelValues(report.Source, result).Inc()
	m.CycleDuration.WithLabelValues(report.Source).Observe(report.Duration.Seconds())
	if result == ResultSuccess {
		m.LastSuccess.WithLabelValues(report.Source).Set(float64(report.CollectTime.Unix()))
	}

	for category, c := range report.Categories {
		cat := string(category)
		for op, batch := range c.Batches() {
			m.ItemsTotal.WithLabelValues(cat, op, ResultSuccess).Add(float64(len(batch.Success)))
			m.ItemsTotal.WithLabelValues(cat, op, ResultFailure).Add(float64(len(batch.Failed)))

			created, exists, failed := batch.AssociationCounts()
			m.AssociationsTotal.WithLabelValues(cat, string(reconcile.AssociationCreated)).Add(float64(created))
			m.AssociationsTotal.WithLabelValues(cat, string(reconcile.AssociationExists)).Add(float64(exists))
			m.AssociationsTotal.WithLabelValues(cat, "failed").Add(float64(failed))
		}
		if n := len(c.Skipped); n > 0 {
			m.SkippedTotal.WithLabelValues(cat).Add(float64(n))
		}
		if n := len(c.Pruned); n > 0 {
			m.PrunedTotal.WithLabelValues(cat).Add(float64(n))
		}
	}
}

// ObserveAbort records a cycle that failed before reconciliation
func (m *Metrics) ObserveAbort(source string) {
	m.CyclesTotal.WithLabelValues(source, ResultFailure).Inc()
}
