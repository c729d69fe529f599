package client_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flexilist/flexisync/client"
	"github.com/flexilist/flexisync/store"
	"github.com/flexilist/flexisync/store/memstore"
	"github.com/stretchr/testify/require"
)

// spyStore wraps a store and counts calls, so tests can assert that
// suppressed subscriptions and rejected validations never reach it.
type spyStore struct {
	store.Store
	watchCalls  atomic.Int64
	createCalls atomic.Int64
	setCalls    atomic.Int64
	setErr      error
}

func newSpyStore() *spyStore {
	return &spyStore{Store: memstore.New()}
}

func (s *spyStore) Watch(ctx context.Context, q store.Query) (store.Watcher, error) {
	s.watchCalls.Add(1)
	return s.Store.Watch(ctx, q)
}

func (s *spyStore) Create(ctx context.Context, collectionPath string, data map[string]any) (string, error) {
	s.createCalls.Add(1)
	return s.Store.Create(ctx, collectionPath, data)
}

func (s *spyStore) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.setCalls.Add(1)
	return s.Store.Set(ctx, path, data, merge)
}

// errWatchStore fails every Watch call outright.
type errWatchStore struct {
	store.Store
	watchCalls atomic.Int64
}

func (s *errWatchStore) Watch(ctx context.Context, q store.Query) (store.Watcher, error) {
	s.watchCalls.Add(1)
	return nil, errors.New("watch unavailable")
}

// failingWatchStore returns a watcher that immediately reports an error.
type failingWatchStore struct {
	store.Store
}

func (s *failingWatchStore) Watch(ctx context.Context, q store.Query) (store.Watcher, error) {
	w := &failingWatcher{ch: make(chan store.Snapshot, 1)}
	w.ch <- store.Snapshot{Err: errors.New("permission denied")}
	return w, nil
}

type failingWatcher struct {
	ch chan store.Snapshot
}

func (w *failingWatcher) Snapshots() <-chan store.Snapshot { return w.ch }
func (w *failingWatcher) Close() error                     { close(w.ch); return nil }

func waitView(t *testing.T, sub *client.Subscription) client.View {
	t.Helper()
	select {
	case view, ok := <-sub.Updates():
		require.True(t, ok, "subscription closed unexpectedly")
		return view
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for view")
		return client.View{}
	}
}

// waitViewWhere polls deliveries until cond holds; conflation means
// intermediate views may be skipped.
func waitViewWhere(t *testing.T, sub *client.Subscription, cond func(client.View) bool) client.View {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case view, ok := <-sub.Updates():
			require.True(t, ok, "subscription closed unexpectedly")
			if cond(view) {
				return view
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching view")
			return client.View{}
		}
	}
}
