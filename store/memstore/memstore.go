// Package memstore is an in-memory store.Store with live-query fan-out.
// It backs tests and single-process embedded use; the daemon uses
// store/sqlstore instead.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/flexilist/flexisync/store"
)

// Store holds documents keyed by collection path and id.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	watchers    map[*watcher]struct{}
	closed      bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]map[string]any),
		watchers:    make(map[*watcher]struct{}),
	}
}

// Close tears down every active watcher.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for w := range s.watchers {
		w.shutdown()
	}
	s.watchers = make(map[*watcher]struct{})
	return nil
}

// Get returns a document by path.
func (s *Store) Get(ctx context.Context, path string) (store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collectionPath, id := store.SplitPath(path)
	data, ok := s.collections[collectionPath][id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return store.Document{ID: id, Data: deepCopy(data)}, nil
}

// Create adds a document with a store-assigned id.
func (s *Store) Create(ctx context.Context, collectionPath string, data map[string]any) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", store.ErrClosed
	}

	id := uuid.NewString()
	coll := s.collections[collectionPath]
	if coll == nil {
		coll = make(map[string]map[string]any)
		s.collections[collectionPath] = coll
	}
	coll[id] = deepCopy(data)
	s.notifyLocked(collectionPath)
	s.mu.Unlock()
	return id, nil
}

// Set writes a document, optionally merging into the existing data at the
// top level.
func (s *Store) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.ErrClosed
	}

	collectionPath, id := store.SplitPath(path)
	coll := s.collections[collectionPath]
	if coll == nil {
		coll = make(map[string]map[string]any)
		s.collections[collectionPath] = coll
	}

	if merge {
		existing := coll[id]
		if existing == nil {
			existing = make(map[string]any)
		}
		for k, v := range deepCopy(data) {
			existing[k] = v
		}
		coll[id] = existing
	} else {
		coll[id] = deepCopy(data)
	}
	s.notifyLocked(collectionPath)
	s.mu.Unlock()
	return nil
}

// Delete removes a document. Missing documents are a no-op.
func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	collectionPath, id := store.SplitPath(path)
	if coll, ok := s.collections[collectionPath]; ok {
		if _, existed := coll[id]; existed {
			delete(coll, id)
			s.notifyLocked(collectionPath)
		}
	}
	s.mu.Unlock()
	return nil
}

// List runs a one-shot query.
func (s *Store) List(ctx context.Context, q store.Query) ([]store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evaluateLocked(q), nil
}

// Watch opens a live query; the current snapshot is delivered immediately.
func (s *Store) Watch(ctx context.Context, q store.Query) (store.Watcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	w := &watcher{
		store: s,
		query: q,
		ch:    make(chan store.Snapshot, 1),
	}
	s.watchers[w] = struct{}{}
	w.deliver(store.Snapshot{Docs: s.evaluateLocked(q)})
	return w, nil
}

func (s *Store) evaluateLocked(q store.Query) []store.Document {
	var docs []store.Document
	for id, data := range s.collections[q.Path] {
		if q.Where != nil && !equalValue(data[q.Where.Field], q.Where.Equals) {
			continue
		}
		docs = append(docs, store.Document{ID: id, Data: deepCopy(data)})
	}

	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			if q.Descending {
				return lessValue(docs[j].Data[q.OrderBy], docs[i].Data[q.OrderBy])
			}
			return lessValue(docs[i].Data[q.OrderBy], docs[j].Data[q.OrderBy])
		})
	}
	return docs
}

func (s *Store) notifyLocked(collectionPath string) {
	for w := range s.watchers {
		if w.query.Path != collectionPath {
			continue
		}
		w.deliver(store.Snapshot{Docs: s.evaluateLocked(w.query)})
	}
}

type watcher struct {
	store *Store
	query store.Query
	ch    chan store.Snapshot

	mu     sync.Mutex
	closed bool
}

func (w *watcher) Snapshots() <-chan store.Snapshot {
	return w.ch
}

// Close unregisters the watcher. No snapshot is delivered after it returns.
func (w *watcher) Close() error {
	w.store.mu.Lock()
	delete(w.store.watchers, w)
	w.store.mu.Unlock()
	w.shutdown()
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

// deliver conflates: only the latest snapshot is kept when the consumer is
// slow.
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

func deepCopy(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return deepCopy(typed)
	case []any:
		out := make([]any, len(typed))
		for i, e := range typed {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

func equalValue(a, b any) bool {
	if af, ok := store.Float64(a); ok {
		if bf, bok := store.Float64(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

func lessValue(a, b any) bool {
	if af, ok := store.Float64(a); ok {
		if bf, bok := store.Float64(b); bok {
			return af < bf
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as < bs
	}
	return false
}
