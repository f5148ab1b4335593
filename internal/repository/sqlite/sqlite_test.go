package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kubecmdb/internal/domain"
	"kubecmdb/internal/repository"
	"kubecmdb/internal/schema"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	require.NoError(t, err, "failed to create test repository")
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

func nodeValidator() *schema.Validator {
	return schema.New(domain.ModelNode, []domain.AttributeSpec{
		{AttrID: "inst_name", AttrName: "Instance", IsUnique: true, IsRequired: true},
		{AttrID: "name", AttrName: "Name", IsRequired: true},
		{AttrID: "ip_addr", AttrName: "IP", Editable: true},
	})
}

func mustCreate(t *testing.T, repo *Repository, modelID string, attrs domain.Attributes) *domain.StoredEntity {
	t.Helper()
	e, err := repo.CreateEntity(context.Background(), modelID, attrs, nil)
	require.NoError(t, err)
	return e
}

// ============================================================================
// Helper Function Tests
// ============================================================================

func TestDecodeAttributesKeepsNumberTypes(t *testing.T) {
	attrs, err := decodeAttributes([]byte(`{"memory":2,"cpu":0.5,"organization":[1,2],"name":"n1","auto_collect":true}`))
	require.NoError(t, err)

	assert.Equal(t, int64(2), attrs["memory"])
	assert.Equal(t, 0.5, attrs["cpu"])
	assert.Equal(t, []any{int64(1), int64(2)}, attrs["organization"])
	assert.Equal(t, "n1", attrs["name"])
	assert.Equal(t, true, attrs["auto_collect"])
}

func TestWholeNumberFloatsKeepFloatType(t *testing.T) {
	data, err := encodeAttributes(domain.Attributes{"cpu": 4.0, "memory": int64(4), "huge": 1e21, "tags": []any{2.0, int64(3)}})
	require.NoError(t, err)

	attrs, err := decodeAttributes(data)
	require.NoError(t, err)
	assert.Equal(t, 4.0, attrs["cpu"])
	assert.Equal(t, int64(4), attrs["memory"])
	assert.Equal(t, 1e21, attrs["huge"])
	assert.Equal(t, []any{2.0, int64(3)}, attrs["tags"])

	repo := newTestRepo(t)
	n := mustCreate(t, repo, domain.ModelNode, domain.Attributes{"inst_name": "c1/n1", "cpu": 4.0, "memory": int64(16)})
	got, err := repo.GetEntity(context.Background(), n.ID)
	require.NoError(t, err)
	assert.IsType(t, float64(0), got.Attributes["cpu"])
	assert.Equal(t, 4.0, got.Attributes["cpu"])
	assert.Equal(t, int64(16), got.Attributes["memory"])

	// a whole-number float still matches an integer filter
	found, count, err := repo.QueryEntities(context.Background(), repository.EntityQuery{
		Filters: []repository.Filter{repository.Eq("cpu", int64(4))},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Len(t, found, 1)
}

func TestFieldExprRejectsInjection(t *testing.T) {
	_, _, err := fieldExpr("name') OR 1=1 --")
	assert.Error(t, err)

	expr, args, err := fieldExpr("collect_task")
	require.NoError(t, err)
	assert.Equal(t, "json_extract(data, ?)", expr)
	assert.Equal(t, []any{"$.collect_task"}, args)
}

// ============================================================================
// Entity Tests
// ============================================================================

func TestCreateAndQueryEntities(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	v := nodeValidator()

	n1, err := repo.CreateEntity(ctx, domain.ModelNode, domain.Attributes{
		"inst_name": "c1/n1", "name": "n1", "collect_task": "c1", "memory": int64(2),
	}, v)
	require.NoError(t, err)
	assert.NotZero(t, n1.ID)

	_, err = repo.CreateEntity(ctx, domain.ModelNode, domain.Attributes{
		"inst_name": "c2/n1", "name": "n1", "collect_task": "c2",
	}, v)
	require.NoError(t, err)
	mustCreate(t, repo, domain.ModelPod, domain.Attributes{"inst_name": "u1", "name": "p1", "collect_task": "c1"})

	got, total, err := repo.QueryEntities(ctx, repository.EntityQuery{Filters: []repository.Filter{
		repository.Eq(domain.AttrModelID, domain.ModelNode),
		repository.Eq(domain.AttrCollectTask, "c1"),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, n1.ID, got[0].ID)
	assert.Equal(t, domain.ModelNode, got[0].ModelID)
	assert.Equal(t, int64(2), got[0].Attributes["memory"])
	assert.Equal(t, "c1/n1", got[0].InstName())
}

func TestQueryEntitiesPagingAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	for _, name := range []string{"b", "c", "a", "d"} {
		mustCreate(t, repo, domain.ModelNamespace, domain.Attributes{"inst_name": "c1/" + name, "name": name})
	}

	page, total, err := repo.QueryEntities(ctx, repository.EntityQuery{
		Filters: []repository.Filter{repository.Eq(domain.AttrModelID, domain.ModelNamespace)},
		Order:   "-name",
		Page:    &repository.Page{Number: 2, Size: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].Attributes["name"])
	assert.Equal(t, "a", page[1].Attributes["name"])

	in, _, err := repo.QueryEntities(ctx, repository.EntityQuery{Filters: []repository.Filter{
		{Field: "name", Type: repository.FilterIn, Value: []string{"a", "d"}},
	}, Order: "name"})
	require.NoError(t, err)
	require.Len(t, in, 2)
	assert.Equal(t, "a", in[0].Attributes["name"])

	like, _, err := repo.QueryEntities(ctx, repository.EntityQuery{Filters: []repository.Filter{
		{Field: "inst_name", Type: repository.FilterContains, Value: "c1/"},
		{Field: "name", Type: repository.FilterNotEqual, Value: "a"},
	}})
	require.NoError(t, err)
	assert.Len(t, like, 3)

	_, _, err = repo.QueryEntities(ctx, repository.EntityQuery{Filters: []repository.Filter{
		{Field: "name", Type: "regex", Value: "a"},
	}})
	assert.Error(t, err)
}

func TestCreateEntityValidation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	v := nodeValidator()

	_, err := repo.CreateEntity(ctx, domain.ModelNode, domain.Attributes{"inst_name": "c1/n1"}, v)
	assert.ErrorIs(t, err, schema.ErrRequiredMissing)

	_, err = repo.CreateEntity(ctx, domain.ModelNode, domain.Attributes{"inst_name": "c1/n1", "name": "n1"}, v)
	require.NoError(t, err)

	_, err = repo.CreateEntity(ctx, domain.ModelNode, domain.Attributes{"inst_name": "c1/n1", "name": "other"}, v)
	assert.ErrorIs(t, err, schema.ErrUniqueViolation)

	// uniqueness is per model
	_, err = repo.CreateEntity(ctx, domain.ModelPod, domain.Attributes{"inst_name": "c1/n1", "name": "n1"}, v)
	assert.NoError(t, err)
}

func TestUpdateEntity(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	v := nodeValidator()

	n1 := mustCreate(t, repo, domain.ModelNode, domain.Attributes{"inst_name": "c1/n1", "name": "n1", "ip_addr": "10.0.0.1", "cpu": 2.0})
	mustCreate(t, repo, domain.ModelNode, domain.Attributes{"inst_name": "c1/n2", "name": "n2"})

	updated, err := repo.UpdateEntity(ctx, domain.ModelNode, n1.ID, domain.Attributes{"inst_name": "c1/n1", "name": "n1", "ip_addr": "10.0.0.2"}, v)
	require.NoError(t, err)
	assert.Equal(t, n1.ID, updated.ID)

	got, err := repo.GetEntity(ctx, n1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Attributes{"inst_name": "c1/n1", "name": "n1", "ip_addr": "10.0.0.2"}, got.Attributes,
		"update replaces attributes instead of merging")

	_, err = repo.UpdateEntity(ctx, domain.ModelNode, n1.ID, domain.Attributes{"inst_name": "c1/n2", "name": "n1"}, v)
	assert.ErrorIs(t, err, schema.ErrNotEditable)

	_, err = repo.UpdateEntity(ctx, domain.ModelNode, 9999, domain.Attributes{"inst_name": "x", "name": "x"}, v)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.UpdateEntity(ctx, domain.ModelPod, n1.ID, domain.Attributes{"inst_name": "c1/n1", "name": "n1"}, v)
	assert.ErrorIs(t, err, repository.ErrNotFound, "update is scoped to the model")
}

func TestDeleteEntityDetachesEdges(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	node := mustCreate(t, repo, domain.ModelNode, domain.Attributes{"inst_name": "c1/n1"})
	pod := mustCreate(t, repo, domain.ModelPod, domain.Attributes{"inst_name": "u1"})
	_, err := repo.CreateEdge(ctx, domain.Association{
		RelationID: domain.RelationPodNode, Kind: domain.RelationRun,
		SourceModel: domain.ModelPod, SourceID: pod.ID,
		TargetModel: domain.ModelNode, TargetID: node.ID,
	}, domain.RelationPodNode)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteEntity(ctx, domain.ModelNode, node.ID))

	edges, err := repo.ListEdges(ctx, pod.ID)
	require.NoError(t, err)
	assert.Empty(t, edges)

	_, err = repo.GetEntity(ctx, node.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = repo.DeleteEntity(ctx, domain.ModelNode, node.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// ============================================================================
// Edge Tests
// ============================================================================

func TestCreateEdgeDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ns := mustCreate(t, repo, domain.ModelNamespace, domain.Attributes{"inst_name": "c1/ns1"})
	cluster := mustCreate(t, repo, domain.ModelCluster, domain.Attributes{"inst_name": "c1"})
	edge := domain.Association{
		RelationID: domain.RelationNamespaceCluster, Kind: domain.RelationBelong,
		SourceModel: domain.ModelNamespace, SourceID: ns.ID,
		TargetModel: domain.ModelCluster, TargetID: cluster.ID,
	}

	created, err := repo.CreateEdge(ctx, edge, edge.DedupKey())
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	_, err = repo.CreateEdge(ctx, edge, edge.DedupKey())
	assert.ErrorIs(t, err, repository.ErrEdgeExists)

	edges, err := repo.ListEdges(ctx, ns.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, domain.RelationBelong, edges[0].Kind)
	assert.Equal(t, cluster.ID, edges[0].TargetID)

	require.NoError(t, repo.DeleteEdge(ctx, created.ID))
	assert.ErrorIs(t, repo.DeleteEdge(ctx, created.ID), repository.ErrNotFound)
}

func TestCreateEdgeMissingEndpoint(t *testing.T) {
	repo := newTestRepo(t)
	ns := mustCreate(t, repo, domain.ModelNamespace, domain.Attributes{"inst_name": "c1/ns1"})

	_, err := repo.CreateEdge(context.Background(), domain.Association{
		RelationID: domain.RelationNamespaceCluster, SourceID: ns.ID, TargetID: 4242,
	}, domain.RelationNamespaceCluster)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// ============================================================================
// Model Schema Tests
// ============================================================================

func TestSaveModelReplacesAttributes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	model := domain.ModelSpec{ModelID: domain.ModelPod, ModelName: "Pod", Attributes: []domain.AttributeSpec{
		{AttrID: "inst_name", AttrName: "Instance", AttrType: "str", IsUnique: true, IsRequired: true},
		{AttrID: "ip_addr", AttrName: "IP", Editable: true},
	}}
	require.NoError(t, repo.SaveModel(ctx, model))

	attrs, err := repo.GetAttributes(ctx, domain.ModelPod)
	require.NoError(t, err)
	assert.Equal(t, model.Attributes, attrs)

	model.Attributes = model.Attributes[:1]
	require.NoError(t, repo.SaveModel(ctx, model))
	attrs, err = repo.GetAttributes(ctx, domain.ModelPod)
	require.NoError(t, err)
	assert.Len(t, attrs, 1)

	ids, err := repo.ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.ModelPod}, ids)

	none, err := repo.GetAttributes(ctx, "k8s_unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}
