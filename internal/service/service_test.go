package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kubecmdb/internal/domain"
	"kubecmdb/internal/metrics"
	"kubecmdb/internal/reconcile"
	"kubecmdb/internal/repository"
	"kubecmdb/internal/repository/sqlite"
)

func newTestRepo(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func drain(ch <-chan Event) []EventType {
	var out []EventType
	for {
		select {
		case e := <-ch:
			out = append(out, e.Type)
		default:
			return out
		}
	}
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	a := make(chan Event, 1)
	b := make(chan Event, 1)
	bus.Subscribe(a)
	bus.Subscribe(b)

	bus.Publish(Event{Type: EventCycleStarted})
	// a is full; the second publish must not block
	bus.Publish(Event{Type: EventCycleCompleted})

	assert.Equal(t, []EventType{EventCycleStarted}, drain(a))
	assert.Equal(t, []EventType{EventCycleStarted}, drain(b))

	bus.Unsubscribe(a)
	bus.Publish(Event{Type: EventCycleFailed})
	assert.Empty(t, drain(a))
	assert.Equal(t, []EventType{EventCycleFailed}, drain(b))
}

func TestSyncServiceReconcile(t *testing.T) {
	repo := newTestRepo(t)
	bus := NewEventBus()
	events := make(chan Event, 8)
	bus.Subscribe(events)
	m := metrics.New(prometheus.NewRegistry())

	ctrl := reconcile.NewController(repo, repo, reconcile.Options{EnsureCluster: true})
	svc := NewSyncService(ctrl, bus, m)
	svc.now = func() time.Time { return time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC) }

	c := domain.NewCollection("c1")
	c.Add(domain.NamespaceRecord{InstName: "c1/default", Name: "default", Cluster: "c1"})
	require.NoError(t, svc.Reconcile(context.Background(), "kubernetes:c1", c))

	report, ok := svc.Latest("c1")
	require.True(t, ok)
	assert.Equal(t, "c1", report.Source)
	assert.Equal(t, reconcile.Summary{Succeeded: 1}, report.Summary())
	assert.Equal(t, []string{"c1"}, svc.Sources())

	_, ok = svc.Latest("c2")
	assert.False(t, ok)

	assert.Equal(t, []EventType{EventCycleStarted, EventCycleCompleted}, drain(events))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues("c1", metrics.ResultSuccess)))
}

func TestSyncServiceAbortedRun(t *testing.T) {
	repo := newTestRepo(t)
	bus := NewEventBus()
	events := make(chan Event, 8)
	bus.Subscribe(events)

	svc := NewSyncService(reconcile.NewController(repo, repo, reconcile.Options{}), bus, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Reconcile(ctx, "kubernetes:c1", domain.NewCollection("c1"))
	require.ErrorIs(t, err, context.Canceled)

	_, ok := svc.Latest("c1")
	assert.False(t, ok)
	assert.Equal(t, []EventType{EventCycleStarted, EventCycleFailed}, drain(events))
}

func TestSyncServicePublishCollect(t *testing.T) {
	bus := NewEventBus()
	events := make(chan Event, 1)
	bus.Subscribe(events)
	svc := NewSyncService(nil, bus, nil)

	svc.PublishCollect("collect_started", map[string]string{"source": "c1"})

	e := <-events
	assert.Equal(t, EventCollect, e.Type)
	assert.Equal(t, "collect_started", e.Payload.(map[string]any)["event"])
}

func TestInventoryService(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	ns, err := repo.CreateEntity(ctx, domain.ModelNamespace, domain.Attributes{domain.AttrInstName: "c1/default", domain.AttrName: "default"}, nil)
	require.NoError(t, err)
	for _, name := range []string{"b", "a", "c"} {
		pod, err := repo.CreateEntity(ctx, domain.ModelPod, domain.Attributes{domain.AttrInstName: "uid-" + name, domain.AttrName: name}, nil)
		require.NoError(t, err)
		_, err = repo.CreateEdge(ctx, domain.Association{
			RelationID:  domain.RelationPodNamespace,
			SourceModel: domain.ModelPod,
			SourceID:    pod.ID,
			TargetModel: domain.ModelNamespace,
			TargetID:    ns.ID,
			Kind:        domain.RelationGroup,
		}, domain.RelationPodNamespace)
		require.NoError(t, err)
	}

	svc := NewInventoryService(repo)

	page, err := svc.ListEntities(ctx, domain.ModelPod, nil, 1, 2, "")
	require.NoError(t, err)
	assert.Equal(t, 3, page.Count)
	require.Len(t, page.Entities, 2)
	assert.Equal(t, "uid-a", page.Entities[0].InstName())
	assert.Equal(t, "uid-b", page.Entities[1].InstName())

	page, err = svc.ListEntities(ctx, domain.ModelPod, []repository.Filter{repository.Eq(domain.AttrName, "c")}, 0, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, DefaultPageSize, page.PageSize)

	page, err = svc.ListEntities(ctx, domain.ModelNode, nil, 1, 10, "")
	require.NoError(t, err)
	assert.NotNil(t, page.Entities)
	assert.Empty(t, page.Entities)

	edges, err := svc.Associations(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, edges)

	pods, err := svc.ListEntities(ctx, domain.ModelPod, nil, 1, 1, "")
	require.NoError(t, err)
	edges, err = svc.Associations(ctx, pods.Entities[0].ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, ns.ID, edges[0].TargetID)
}

func TestInventorySnapshot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	create := func(modelID string, attrs domain.Attributes) *domain.StoredEntity {
		e, err := repo.CreateEntity(ctx, modelID, attrs, nil)
		require.NoError(t, err)
		return e
	}
	c1 := create(domain.ModelCluster, domain.Attributes{domain.AttrInstName: "c1"})
	create(domain.ModelCluster, domain.Attributes{domain.AttrInstName: "c2"})
	n1 := create(domain.ModelNode, domain.Attributes{domain.AttrInstName: "c1/n1", domain.AttrCollectTask: "c1"})
	create(domain.ModelNode, domain.Attributes{domain.AttrInstName: "c2/n1", domain.AttrCollectTask: "c2"})
	_, err := repo.CreateEdge(ctx, domain.Association{
		RelationID:  domain.RelationNodeCluster,
		SourceModel: domain.ModelNode,
		SourceID:    n1.ID,
		TargetModel: domain.ModelCluster,
		TargetID:    c1.ID,
		Kind:        domain.RelationGroup,
	}, domain.RelationNodeCluster)
	require.NoError(t, err)

	svc := NewInventoryService(repo)

	snap, err := svc.Snapshot(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", snap.Source)
	require.Len(t, snap.Entities, 2)
	assert.Equal(t, "c1", snap.Entities[0].InstName())
	assert.Equal(t, "c1/n1", snap.Entities[1].InstName())
	require.Len(t, snap.Associations, 1)
	assert.Equal(t, c1.ID, snap.Associations[0].TargetID)

	all, err := svc.Snapshot(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all.Entities, 4)
}
