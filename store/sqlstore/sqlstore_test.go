package sqlstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flexilist/flexisync/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "lists", map[string]any{"title": "Groceries", "ownerId": "u1"})
	require.NoError(t, err)

	doc, err := s.Get(ctx, store.DocPath("lists", id))
	require.NoError(t, err)
	require.Equal(t, "Groceries", doc.Data["title"])

	_, err = s.Get(ctx, "lists/missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSet_MergePreservesSiblings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "userPreferences/u1", map[string]any{
		"lastRoute":     "/home",
		"lastVisitedAt": 1,
	}, false))
	require.NoError(t, s.Set(ctx, "userPreferences/u1", map[string]any{
		"lastRoute": "/list/9",
	}, true))

	doc, err := s.Get(ctx, "userPreferences/u1")
	require.NoError(t, err)
	require.Equal(t, "/list/9", doc.Data["lastRoute"])
	require.EqualValues(t, 1, doc.Data["lastVisitedAt"])
}

func TestSet_ConcurrentMergesKeepBothFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "userPreferences/u1", map[string]any{}, false))

	fields := []string{"lastRoute", "lastVisitedAt"}
	errs := make(chan error, len(fields))
	var wg sync.WaitGroup
	for _, field := range fields {
		wg.Add(1)
		go func(field string) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if err := s.Set(ctx, "userPreferences/u1", map[string]any{field: i}, true); err != nil {
					errs <- err
					return
				}
			}
		}(field)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	doc, err := s.Get(ctx, "userPreferences/u1")
	require.NoError(t, err)
	require.EqualValues(t, 24, store.Int64(doc.Data["lastRoute"]))
	require.EqualValues(t, 24, store.Int64(doc.Data["lastVisitedAt"]))
}

func TestSet_MergeOnMissingDocCreates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "userPreferences/u2", map[string]any{"lastRoute": "/x"}, true))
	doc, err := s.Get(ctx, "userPreferences/u2")
	require.NoError(t, err)
	require.Equal(t, "/x", doc.Data["lastRoute"])
}

func TestDelete_MissingIsNoop(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Delete(context.Background(), "lists/ghost"))
}

func TestList_FilterAndDescendingOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, entry := range []struct {
		owner string
		at    int64
	}{
		{"u1", 100}, {"u1", 300}, {"u2", 999}, {"u1", 200},
	} {
		_, err := s.Create(ctx, "lists", map[string]any{"ownerId": entry.owner, "createdAt": entry.at})
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
	require.EqualValues(t, 300, store.Int64(docs[0].Data["createdAt"]))
	require.EqualValues(t, 200, store.Int64(docs[1].Data["createdAt"]))
	require.EqualValues(t, 100, store.Int64(docs[2].Data["createdAt"]))
}

func TestList_Subcollection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "lists/l1/items", map[string]any{"createdAt": 1})
	require.NoError(t, err)
	_, err = s.Create(ctx, "lists/l2/items", map[string]any{"createdAt": 2})
	require.NoError(t, err)

	docs, err := s.List(ctx, store.Query{Path: "lists/l1/items"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestWatch_PushesOnMutation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.Watch(ctx, store.Query{Path: "lists", OrderBy: "createdAt", Descending: true})
	require.NoError(t, err)
	defer w.Close()

	snap := waitSnapshot(t, w)
	require.Empty(t, snap.Docs)

	id, err := s.Create(ctx, "lists", map[string]any{"createdAt": 100})
	require.NoError(t, err)
	snap = waitSnapshot(t, w)
	require.Len(t, snap.Docs, 1)

	require.NoError(t, s.Delete(ctx, store.DocPath("lists", id)))
	snap = waitSnapshot(t, w)
	require.Empty(t, snap.Docs)
}

func TestWatch_ClosedDeliversNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.Watch(ctx, store.Query{Path: "lists"})
	require.NoError(t, err)
	waitSnapshot(t, w)
	require.NoError(t, w.Close())

	_, err = s.Create(ctx, "lists", map[string]any{"createdAt": 1})
	require.NoError(t, err)

	_, open := <-w.Snapshots()
	require.False(t, open)
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
