package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flexilist/flexisync/store"
)

func TestCreateAndGet(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.Create(ctx, "lists", map[string]any{"title": "Groceries"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := s.Get(ctx, store.DocPath("lists", id))
	require.NoError(t, err)
	require.Equal(t, "Groceries", doc.Data["title"])

	_, err = s.Get(ctx, "lists/nonexistent")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSet_Merge(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "userPreferences/u1", map[string]any{
		"lastRoute": "/home",
		"lastVisitedAt": int64(1),
	}, false))
	require.NoError(t, s.Set(ctx, "userPreferences/u1", map[string]any{
		"lastRoute": "/list/1",
	}, true))

	doc, err := s.Get(ctx, "userPreferences/u1")
	require.NoError(t, err)
	require.Equal(t, "/list/1", doc.Data["lastRoute"])
	require.EqualValues(t, 1, doc.Data["lastVisitedAt"])
}

func TestDelete_MissingIsNoop(t *testing.T) {
	s := New()
	require.NoError(t, s.Delete(context.Background(), "lists/ghost"))
}

func TestList_FilterAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, entry := range []struct {
		owner     string
		createdAt int64
	}{
		{"u1", 100}, {"u1", 300}, {"u2", 500}, {"u1", 200},
	} {
		_, err := s.Create(ctx, "lists", map[string]any{
			"ownerId":   entry.owner,
			"createdAt": entry.createdAt,
		})
		require.NoError(t, err)
	}

	docs, err := s.List(ctx, store.Query{
		Path:       "lists",
		Where:      &store.Filter{Field: "ownerId", Equals: "u1"},
		OrderBy:    "createdAt",
		Descending: true,
	})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	require.EqualValues(t, 300, docs[0].Data["createdAt"])
	require.EqualValues(t, 200, docs[1].Data["createdAt"])
	require.EqualValues(t, 100, docs[2].Data["createdAt"])
}

func TestWatch_DeliversInitialAndUpdates(t *testing.T) {
	s := New()
	ctx := context.Background()

	w, err := s.Watch(ctx, store.Query{Path: "lists", OrderBy: "createdAt", Descending: true})
	require.NoError(t, err)
	defer w.Close()

	snap := waitSnapshot(t, w)
	require.Empty(t, snap.Docs)

	_, err = s.Create(ctx, "lists", map[string]any{"createdAt": int64(100)})
	require.NoError(t, err)

	snap = waitSnapshot(t, w)
	require.Len(t, snap.Docs, 1)
}

func TestWatch_NoDeliveryAfterClose(t *testing.T) {
	s := New()
	ctx := context.Background()

	w, err := s.Watch(ctx, store.Query{Path: "lists"})
	require.NoError(t, err)
	waitSnapshot(t, w)
	require.NoError(t, w.Close())

	_, err = s.Create(ctx, "lists", map[string]any{"createdAt": int64(1)})
	require.NoError(t, err)

	// Channel must be closed with nothing further delivered.
	snap, open := <-w.Snapshots()
	require.False(t, open, "expected closed channel, got %+v", snap)
}

func TestWatch_Conflation(t *testing.T) {
	s := New()
	ctx := context.Background()

	w, err := s.Watch(ctx, store.Query{Path: "lists"})
	require.NoError(t, err)
	defer w.Close()

	// Consumer is slow: only the latest snapshot is retained.
	for i := 0; i < 5; i++ {
		_, err := s.Create(ctx, "lists", map[string]any{"n": int64(i)})
		require.NoError(t, err)
	}

	snap := waitSnapshot(t, w)
	require.Len(t, snap.Docs, 5)
}

func TestGet_IsolatedFromMutation(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.Create(ctx, "lists", map[string]any{"nested": map[string]any{"k": "v"}})
	require.NoError(t, err)

	doc, err := s.Get(ctx, store.DocPath("lists", id))
	require.NoError(t, err)
	doc.Data["nested"].(map[string]any)["k"] = "mutated"

	again, err := s.Get(ctx, store.DocPath("lists", id))
	require.NoError(t, err)
	require.Equal(t, "v", again.Data["nested"].(map[string]any)["k"])
}

func waitSnapshot(t *testing.T, w store.Watcher) store.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-w.Snapshots():
		require.True(t, ok, "watcher closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return store.Snapshot{}
	}
}
