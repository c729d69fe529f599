package sqlstore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/flexilist/flexisync/store"
)

// hub fans document mutations out to active watchers. Every mutation to a
// collection re-evaluates each watcher registered on that collection path
// and delivers a whole new snapshot (wholesale reconciliation).
type hub struct {
	store  *Store
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[*hubWatcher]struct{}
	closed   bool
}

func newHub(s *Store, logger *slog.Logger) *hub {
	return &hub{
		store:    s,
		logger:   logger,
		watchers: make(map[*hubWatcher]struct{}),
	}
}

func (h *hub) watch(ctx context.Context, q store.Query) (store.Watcher, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, store.ErrClosed
	}
	w := &hubWatcher{
		hub:   h,
		query: q,
		ch:    make(chan store.Snapshot, 1),
	}
	h.watchers[w] = struct{}{}
	h.mu.Unlock()

	w.refresh(ctx)
	return w, nil
}

// notify re-evaluates every watcher on the given collection path.
func (h *hub) notify(collectionPath string) {
	h.mu.Lock()
	targets := make([]*hubWatcher, 0, len(h.watchers))
	for w := range h.watchers {
		if w.query.Path == collectionPath {
			targets = append(targets, w)
		}
	}
	h.mu.Unlock()

	for _, w := range targets {
		w.refresh(context.Background())
	}
}

func (h *hub) remove(w *hubWatcher) {
	h.mu.Lock()
	delete(h.watchers, w)
	h.mu.Unlock()
}

func (h *hub) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	watchers := make([]*hubWatcher, 0, len(h.watchers))
	for w := range h.watchers {
		watchers = append(watchers, w)
	}
	h.watchers = make(map[*hubWatcher]struct{})
	h.mu.Unlock()

	for _, w := range watchers {
		w.shutdown()
	}
}

type hubWatcher struct {
	hub   *hub
	query store.Query
	ch    chan store.Snapshot

	mu     sync.Mutex
	closed bool
}

func (w *hubWatcher) Snapshots() <-chan store.Snapshot {
	return w.ch
}

func (w *hubWatcher) Close() error {
	w.hub.remove(w)
	w.shutdown()
	return nil
}

func (w *hubWatcher) refresh(ctx context.Context) {
	docs, err := w.hub.store.List(ctx, w.query)
	if err != nil {
		w.hub.logger.Error("watch re-evaluation failed", "path", w.query.Path, "error", err)
		w.deliver(store.Snapshot{Err: err})
		return
	}
	w.deliver(store.Snapshot{Docs: docs})
}

func (w *hubWatcher) shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.ch)
}

// deliver conflates: a slow consumer only ever sees the latest snapshot.
func (w *hubWatcher) deliver(snap store.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case <-w.ch:
	default:
	}
	w.ch <- snap
}
