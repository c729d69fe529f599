package client

import (
	"context"
	"sync"

	"github.com/flexilist/flexisync/list"
	"github.com/flexilist/flexisync/store"
)

// Counts is the derived completed/total rollup for one list. It is never
// persisted; it is valid only while its backing item subscription is
// active.
type Counts struct {
	Completed int
	Total     int
}

// Aggregator folds item subscriptions into Counts. Multiple simultaneous
// consumers of the same list share one underlying store watch through the
// Manager's reference counting; opening a second handle never costs a
// second store round-trip.
type Aggregator struct {
	manager *Manager
}

// NewAggregator creates an aggregator on top of a subscription manager.
func NewAggregator(manager *Manager) *Aggregator {
	return &Aggregator{manager: manager}
}

// Open starts watching l's items and folding them into Counts. While the
// list's create is still unconfirmed (HasPendingWrites), the backing
// subscription is suppressed and the handle reports {0,0}; the item path
// does not exist remotely yet.
func (a *Aggregator) Open(ctx context.Context, l list.List) *CountsHandle {
	scope := ItemsScope(l.ID)
	if l.HasPendingWrites {
		scope = Scope{}
	}

	sub := a.manager.Subscribe(ctx, scope)
	h := &CountsHandle{
		sub:     sub,
		updates: make(chan Counts, 1),
	}
	go h.fold()
	return h
}

// CountsHandle is a live rollup consumer handle.
type CountsHandle struct {
	sub     *Subscription
	updates chan Counts

	mu      sync.Mutex
	current Counts
	closed  bool
}

// Updates delivers a new Counts per snapshot, conflated. Closed when the
// handle closes.
func (h *CountsHandle) Updates() <-chan Counts {
	return h.updates
}

// Current returns the latest rollup. {0,0} while loading or suppressed.
func (h *CountsHandle) Current() Counts {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Close releases the underlying subscription.
func (h *CountsHandle) Close() {
	h.sub.Close()
}

func (h *CountsHandle) fold() {
	for view := range h.sub.Updates() {
		counts := foldCounts(view)

		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return
		}
		h.current = counts
		select {
		case <-h.updates:
		default:
		}
		h.updates <- counts
		h.mu.Unlock()
	}

	h.mu.Lock()
	h.closed = true
	close(h.updates)
	h.mu.Unlock()
}

func foldCounts(view View) Counts {
	if view.Loading {
		return Counts{}
	}
	counts := Counts{Total: len(view.Docs)}
	for _, doc := range view.Docs {
		if store.Bool(doc.Data["completed"]) {
			counts.Completed++
		}
	}
	return counts
}
