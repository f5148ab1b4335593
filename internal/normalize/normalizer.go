// Package normalize turns a flat batch of raw metric samples into typed,
// cross-referenced entity records.
//
// Samples are partitioned by category using the telemetry metric catalog and
// each category is handed to its own join function through a dispatch table.
// A join miss (no owner, no capacity sample, no controller) is never an
// error: the dependent field is simply left unset.
package normalize

import (
	"strings"

	"k8s.io/klog/v2"

	"kubecmdb/internal/domain"
	"kubecmdb/internal/telemetry"
)

// normalizeFunc joins one category's samples into records
type normalizeFunc func(source string, samples []domain.RawSample) []domain.Record

var dispatch = map[domain.Category]normalizeFunc{
	domain.CategoryNamespace: normalizeNamespaces,
	domain.CategoryWorkload:  normalizeWorkloads,
	domain.CategoryNode:      normalizeNodes,
	domain.CategoryPod:       normalizePods,
}

// Normalizer builds the desired entity set for one source
type Normalizer struct {
	source string
}

// New creates a normalizer scoped to source (the cluster identifier)
func New(source string) *Normalizer {
	return &Normalizer{source: source}
}

// Source returns the cluster identifier this normalizer is scoped to
func (n *Normalizer) Source() string {
	return n.source
}

// Normalize partitions samples by category and runs each category's join.
// The result is deterministic for a given sample set: records are
// deduplicated by identity and sorted by inst_name.
func (n *Normalizer) Normalize(samples []domain.RawSample) *domain.Collection {
	buckets := Partition(samples)
	out := domain.NewCollection(n.source)

	for _, category := range domain.Categories {
		fn := dispatch[category]
		records := dedupe(fn(n.source, buckets[category]))
		for _, r := range records {
			if err := domain.ValidateRecord(r); err != nil {
				klog.V(2).InfoS("Dropping incomplete record", "category", category,
					"instName", r.Attributes().String(domain.AttrInstName), "err", err)
				continue
			}
			out.Add(r)
		}
	}

	out.SortByIdentity()
	return out
}

// Partition groups samples by the category of their metric name. Samples
// whose metric is not in the catalog are dropped.
func Partition(samples []domain.RawSample) map[domain.Category][]domain.RawSample {
	buckets := make(map[domain.Category][]domain.RawSample, len(domain.Categories))
	for _, s := range samples {
		category, ok := telemetry.CategoryOf(s.MetricName)
		if !ok {
			continue
		}
		buckets[category] = append(buckets[category], s)
	}
	return buckets
}

// dedupe collapses records sharing an inst_name; the last one observed wins
// but keeps the position of the first.
func dedupe(records []domain.Record) []domain.Record {
	index := make(map[string]int, len(records))
	out := make([]domain.Record, 0, len(records))
	for _, r := range records {
		key := r.Attributes().String(domain.AttrInstName)
		if i, ok := index[key]; ok {
			out[i] = r
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	return out
}

// join builds identities of the form a/b/c
func join(parts ...string) string {
	return strings.Join(parts, "/")
}
