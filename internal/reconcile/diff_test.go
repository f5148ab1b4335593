package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kubecmdb/internal/domain"
)

func ns(name string) domain.NamespaceRecord {
	return domain.NamespaceRecord{InstName: "c1/" + name, Name: name, Cluster: "c1"}
}

func stored(id int64, instName string) domain.StoredEntity {
	return domain.StoredEntity{
		ID:         id,
		ModelID:    domain.ModelNamespace,
		Attributes: domain.Attributes{domain.AttrInstName: instName},
	}
}

func TestDiffClassifiesByIdentity(t *testing.T) {
	old := []domain.StoredEntity{stored(1, "c1/default"), stored(2, "c1/gone")}
	records := []domain.Record{ns("default"), ns("new")}

	plan := Diff(old, records, DefaultUniqueKeys)

	require.Len(t, plan.Add, 1)
	assert.Equal(t, "c1/new", plan.Add[0].Attributes().String(domain.AttrInstName))

	require.Len(t, plan.Update, 1)
	assert.Equal(t, int64(1), plan.Update[0].ID, "update inherits the stored id")
	assert.Equal(t, "c1/default", plan.Update[0].Record.Attributes().String(domain.AttrInstName))

	require.Len(t, plan.Delete, 1)
	assert.Equal(t, int64(2), plan.Delete[0].ID)
	assert.Empty(t, plan.Skipped)
}

func TestDiffPartitionsInputs(t *testing.T) {
	tests := []struct {
		name    string
		old     []domain.StoredEntity
		records []domain.Record
		add     int
		update  int
		delete  int
	}{
		{name: "empty", add: 0, update: 0, delete: 0},
		{name: "all new", records: []domain.Record{ns("a"), ns("b")}, add: 2},
		{name: "all gone", old: []domain.StoredEntity{stored(1, "c1/a"), stored(2, "c1/b")}, delete: 2},
		{
			name:    "mixed",
			old:     []domain.StoredEntity{stored(1, "c1/a"), stored(2, "c1/b"), stored(3, "c1/c")},
			records: []domain.Record{ns("b"), ns("c"), ns("d")},
			add:     1, update: 2, delete: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Diff(tt.old, tt.records, DefaultUniqueKeys)
			assert.Len(t, plan.Add, tt.add)
			assert.Len(t, plan.Update, tt.update)
			assert.Len(t, plan.Delete, tt.delete)

			// every new identity is added or updated, every old one updated or deleted
			assert.Equal(t, len(tt.records), len(plan.Add)+len(plan.Update))
			assert.Equal(t, len(tt.old), len(plan.Update)+len(plan.Delete))
			assert.Equal(t, tt.add+tt.update+tt.delete == 0, plan.Empty())
		})
	}
}

func TestDiffSkipsRecordsWithoutIdentity(t *testing.T) {
	records := []domain.Record{ns("a"), domain.NamespaceRecord{Name: "anonymous", Cluster: "c1"}}

	plan := Diff(nil, records, DefaultUniqueKeys)

	assert.Len(t, plan.Add, 1)
	require.Len(t, plan.Skipped, 1)
	assert.Equal(t, "anonymous", plan.Skipped[0].Attributes().String(domain.AttrName))
}

func TestDiffIgnoresStoredEntitiesWithoutIdentity(t *testing.T) {
	old := []domain.StoredEntity{{ID: 9, ModelID: domain.ModelNamespace, Attributes: domain.Attributes{}}}

	plan := Diff(old, nil, DefaultUniqueKeys)

	assert.Empty(t, plan.Delete)
}

func TestDiffDuplicateIdentityLastWins(t *testing.T) {
	first := domain.NamespaceRecord{InstName: "c1/a", Name: "first", Cluster: "c1"}
	second := domain.NamespaceRecord{InstName: "c1/a", Name: "second", Cluster: "c1"}

	plan := Diff(nil, []domain.Record{first, ns("b"), second}, DefaultUniqueKeys)

	require.Len(t, plan.Add, 2)
	assert.Equal(t, "second", plan.Add[0].Attributes().String(domain.AttrName))
	assert.Equal(t, "c1/b", plan.Add[1].Attributes().String(domain.AttrInstName))
}

func TestDiffCompositeKey(t *testing.T) {
	keys := []string{domain.AttrInstName, domain.AttrName}
	old := []domain.StoredEntity{{
		ID:         1,
		ModelID:    domain.ModelNamespace,
		Attributes: domain.Attributes{domain.AttrInstName: "c1/a", domain.AttrName: "a"},
	}}
	renamed := domain.NamespaceRecord{InstName: "c1/a", Name: "renamed", Cluster: "c1"}

	plan := Diff(old, []domain.Record{renamed}, keys)

	assert.Len(t, plan.Add, 1)
	assert.Len(t, plan.Delete, 1)
	assert.Empty(t, plan.Update)
}
