// Package store defines the contract consumed from the remote document
// store: schemaless documents addressed by collection path + id, one-shot
// queries, and live queries delivered as a push stream of whole snapshots.
package store

import (
	"context"
	"strings"
)

// Document is a schemaless record held by the store.
type Document struct {
	ID   string
	Data map[string]any

	// HasPendingWrites marks a local optimistic echo that the store has
	// not yet acknowledged. Only store implementations with a local write
	// pipeline (store/remote) ever set it.
	HasPendingWrites bool
}

// Filter is an equality filter on a single document field.
type Filter struct {
	Field  string
	Equals any
}

// Query selects an ordered subset of a collection.
type Query struct {
	// Path is a collection path, e.g. "lists" or "lists/<id>/items".
	Path       string
	Where      *Filter
	OrderBy    string
	Descending bool
}

// Snapshot is one delivery from a live query: the full, reordered document
// set matching the query. Reconciliation is wholesale, never incremental.
// Err is set instead of Docs when the watch failed; consumers are expected
// to treat that as fail-soft.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Watcher is a live query handle. After Close returns, no further snapshots
// are delivered on the channel.
type Watcher interface {
	Snapshots() <-chan Snapshot
	Close() error
}

// Store is the document store surface the synchronizer relies on. The store
// is treated as a black box: durability, indexing and consistency are its
// problem. Ordering is causal per document only.
//
// Delete of a missing document is a no-op, not an error; cascade retries
// depend on that.
type Store interface {
	// Get returns a single document by path. ErrNotFound when missing.
	Get(ctx context.Context, path string) (Document, error)
	// Create adds a document to a collection; the store assigns the id.
	Create(ctx context.Context, collectionPath string, data map[string]any) (string, error)
	// Set writes a document at path. With merge, fields in data are
	// merged into the existing document at the top level; without it the
	// document is replaced.
	Set(ctx context.Context, path string, data map[string]any, merge bool) error
	// Delete removes a document. Missing documents are ignored.
	Delete(ctx context.Context, path string) error
	// List runs a one-shot query.
	List(ctx context.Context, q Query) ([]Document, error)
	// Watch opens a live query.
	Watch(ctx context.Context, q Query) (Watcher, error)
}

// DocPath joins a collection path and a document id.
func DocPath(collectionPath, id string) string {
	return collectionPath + "/" + id
}

// SplitPath splits a document path into its collection path and id.
func SplitPath(path string) (collectionPath, id string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}
