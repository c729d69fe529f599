package remote

import (
	"context"
	"sync"
	"time"

	"github.com/flexilist/flexisync/store"
)

// watcher is one live subscription held by a Client.
type watcher struct {
	client *Client
	subID  string
	query  store.Query
	ch     chan store.Snapshot

	mu         sync.Mutex
	closed     bool
	lastServer []store.Document
}

func (w *watcher) Snapshots() <-chan store.Snapshot {
	return w.ch
}

// Close unregisters the watcher locally first, so no snapshot is delivered
// after it returns, then releases the server-side subscription.
func (w *watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()

	w.client.unsubscribe(w.subID)
	return nil
}

func (w *watcher) shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.ch)
}

// deliver conflates: only the latest snapshot is retained for a slow
// consumer.
func (w *watcher) deliver(snap store.Snapshot) {
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

// deliverServer records the raw server snapshot, merges in any unconfirmed
// echoes, and emits the result. lastServer stays echo-free so a removed
// echo can never resurface from it.
func (w *watcher) deliverServer(serverDocs []store.Document) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.lastServer = serverDocs
	w.mu.Unlock()

	w.deliver(store.Snapshot{Docs: w.client.mergeEchoes(w.query, serverDocs)})
}

// redeliverWithEchoes re-emits the last server snapshot merged with the
// client's current optimistic echoes. Used when an echo is added or
// removed between server deliveries.
func (w *watcher) redeliverWithEchoes() {
	w.mu.Lock()
	last := w.lastServer
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	w.deliver(store.Snapshot{Docs: w.client.mergeEchoes(w.query, last)})
}

func contextWithDialTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
