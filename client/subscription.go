package client

import (
	"context"
	"log/slog"
	"sync"

	"github.com/flexilist/flexisync/store"
)

// View is one delivery to a subscription consumer: the current ordered
// snapshot plus whether the first store notification is still outstanding.
type View struct {
	Docs    []store.Document
	Loading bool
}

// Manager owns live subscriptions against the store. Exactly one store
// watch exists per distinct scope at a time; concurrent consumers of the
// same scope share it through reference counting, so no scope is ever
// fetched twice in parallel.
type Manager struct {
	store  store.Store
	logger *slog.Logger

	mu     sync.Mutex
	shared map[string]*sharedWatch
}

// NewManager creates a subscription manager.
func NewManager(st store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  st,
		logger: logger,
		shared: make(map[string]*sharedWatch),
	}
}

// Subscribe opens (or joins) the live query for scope. A suppressed scope
// returns immediately with an empty, loading=false view and no store
// contact. Consumers switching scopes must Close the old subscription
// before subscribing anew; Close is fully synchronous, so the teardown is
// deterministic.
func (m *Manager) Subscribe(ctx context.Context, scope Scope) *Subscription {
	sub := &Subscription{
		updates: make(chan View, 1),
	}

	if scope.IsZero() {
		sub.suppressed = true
		sub.current = View{Loading: false}
		sub.updates <- sub.current
		return sub
	}

	sub.current = View{Loading: true}

	m.mu.Lock()
	sw := m.shared[scope.key()]
	if sw == nil {
		sw = &sharedWatch{
			manager: m,
			key:     scope.key(),
			subs:    make(map[*Subscription]struct{}),
			current: View{Loading: true},
		}
		m.shared[scope.key()] = sw
	}
	sw.refs++
	m.mu.Unlock()

	sub.shared = sw

	sw.mu.Lock()
	sw.subs[sub] = struct{}{}
	if sw.watcher != nil || sw.failed {
		// Joining an established (or already-failed) watch: adopt its
		// current view.
		sub.current = sw.current
		sub.push(sw.current)
	}
	started := sw.watcher != nil || sw.starting || sw.failed
	if !started {
		sw.starting = true
	}
	sw.mu.Unlock()

	if !started {
		m.start(ctx, scope, sw)
	}
	return sub
}

// start opens the store watch and begins pumping snapshots to consumers.
func (m *Manager) start(ctx context.Context, scope Scope, sw *sharedWatch) {
	watcher, err := m.store.Watch(ctx, scope.query)
	if err != nil {
		// Fail-soft: consumers see an empty list rather than an error.
		// The entry is marked failed and dropped from the shared map, so
		// current consumers get the empty view and the next Subscribe on
		// this scope retries the watch instead of joining a dead entry.
		m.logger.Error("subscription failed to open", "scope", sw.key, "error", err)
		sw.mu.Lock()
		sw.starting = false
		sw.failed = true
		sw.current = View{Loading: false}
		sw.mu.Unlock()

		m.mu.Lock()
		if m.shared[sw.key] == sw {
			delete(m.shared, sw.key)
		}
		m.mu.Unlock()

		sw.publish(View{Loading: false})
		return
	}

	sw.mu.Lock()
	if sw.refs == 0 {
		// Every consumer left while the watch was being established.
		sw.mu.Unlock()
		watcher.Close()
		return
	}
	sw.starting = false
	sw.watcher = watcher
	sw.mu.Unlock()

	go sw.pump(watcher)
}

// sharedWatch is one reference-counted store watch fanning out to all
// subscriptions of the same scope.
type sharedWatch struct {
	manager *Manager
	key     string

	mu       sync.Mutex
	refs     int
	starting bool
	failed   bool
	watcher  store.Watcher
	current  View
	subs     map[*Subscription]struct{}
}

func (sw *sharedWatch) pump(watcher store.Watcher) {
	for snap := range watcher.Snapshots() {
		if snap.Err != nil {
			// Fail-soft: keep whatever was delivered last, stop loading.
			sw.manager.logger.Error("subscription error", "scope", sw.key, "error", snap.Err)
			sw.mu.Lock()
			view := View{Docs: sw.current.Docs, Loading: false}
			sw.mu.Unlock()
			sw.publish(view)
			continue
		}
		sw.publish(View{Docs: snap.Docs, Loading: false})
	}
}

func (sw *sharedWatch) publish(view View) {
	sw.mu.Lock()
	sw.current = view
	targets := make([]*Subscription, 0, len(sw.subs))
	for sub := range sw.subs {
		targets = append(targets, sub)
	}
	sw.mu.Unlock()

	for _, sub := range targets {
		sub.push(view)
	}
}

// release detaches a subscription; the store watch is torn down when the
// last one leaves.
func (sw *sharedWatch) release(sub *Subscription) {
	sw.mu.Lock()
	delete(sw.subs, sub)
	sw.refs--
	last := sw.refs == 0
	var watcher store.Watcher
	if last {
		watcher = sw.watcher
		sw.watcher = nil
	}
	sw.mu.Unlock()

	if last {
		sw.manager.mu.Lock()
		// A failed entry was already dropped; a fresh watch may own the
		// key by now.
		if sw.manager.shared[sw.key] == sw {
			delete(sw.manager.shared, sw.key)
		}
		sw.manager.mu.Unlock()
		if watcher != nil {
			watcher.Close()
		}
	}
}

// Subscription is one consumer's handle on a scope. Updates delivers views
// conflated (latest wins); Current returns the most recent view without
// blocking. After Close returns, no further view is delivered; a consumer
// that switched scopes never hears from the old one again.
type Subscription struct {
	shared     *sharedWatch
	suppressed bool

	mu      sync.Mutex
	closed  bool
	current View
	updates chan View
}

// Updates returns the view channel. Closed when the subscription closes.
func (s *Subscription) Updates() <-chan View {
	return s.updates
}

// Current returns the most recently delivered view.
func (s *Subscription) Current() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Suppressed reports whether this subscription was opened on the zero
// scope.
func (s *Subscription) Suppressed() bool {
	return s.suppressed
}

// Close detaches from the shared watch. Synchronous: when it returns, the
// consumer is unregistered from fan-out and the channel is closed.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.shared != nil {
		s.shared.release(s)
	}

	s.mu.Lock()
	close(s.updates)
	s.mu.Unlock()
}

func (s *Subscription) push(view View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.current = view
	select {
	case <-s.updates:
	default:
	}
	s.updates <- view
}
