// Package sqlstore implements store.Store on SQLite. Documents are stored
// as JSON rows keyed by collection path + id; live queries are served by a
// watch hub that re-evaluates affected queries after every mutation.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/flexilist/flexisync/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection_path TEXT NOT NULL,
    id TEXT NOT NULL,
    data TEXT NOT NULL,
    PRIMARY KEY (collection_path, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection_path);
`

// Store persists documents in a SQLite database.
type Store struct {
	db     *sqlx.DB
	hub    *hub
	logger *slog.Logger
}

// New opens (or creates) the database at path and prepares the schema.
// Use ":memory:" for an ephemeral store.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite allows one writer at a time. A single pooled connection
	// serializes transactions instead of surfacing busy errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing schema: %w", err)
	}

	s := &Store{db: db, logger: logger}
	s.hub = newHub(s, logger)
	return s, nil
}

// Close shuts down the watch hub and the database connection.
func (s *Store) Close() error {
	s.hub.close()
	return s.db.Close()
}

// Get returns a document by path.
func (s *Store) Get(ctx context.Context, path string) (store.Document, error) {
	collectionPath, id := store.SplitPath(path)

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection_path = ? AND id = ?`,
		collectionPath, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("loading document: %w", err)
	}

	data, err := decodeData(raw)
	if err != nil {
		return store.Document{}, err
	}
	return store.Document{ID: id, Data: data}, nil
}

// Create adds a document with a store-assigned id.
func (s *Store) Create(ctx context.Context, collectionPath string, data map[string]any) (string, error) {
	id := uuid.NewString()
	raw, err := encodeData(data)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection_path, id, data) VALUES (?, ?, ?)`,
		collectionPath, id, raw,
	)
	if err != nil {
		return "", fmt.Errorf("creating document: %w", err)
	}

	s.hub.notify(collectionPath)
	return id, nil
}

// Set writes a document, optionally merging into the existing data at the
// top level.
func (s *Store) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	collectionPath, id := store.SplitPath(path)

	if merge {
		if err := s.setMerge(ctx, collectionPath, id, data); err != nil {
			return err
		}
		s.hub.notify(collectionPath)
		return nil
	}

	raw, err := encodeData(data)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection_path, id, data) VALUES (?, ?, ?)
		 ON CONFLICT(collection_path, id) DO UPDATE SET data = excluded.data`,
		collectionPath, id, raw,
	)
	if err != nil {
		return fmt.Errorf("writing document: %w", err)
	}

	s.hub.notify(collectionPath)
	return nil
}

// setMerge runs the read-modify-write inside a transaction so concurrent
// merges against the same document cannot drop each other's fields.
func (s *Store) setMerge(ctx context.Context, collectionPath, id string, data map[string]any) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning merge transaction: %w", err)
	}
	defer tx.Rollback()

	merged := make(map[string]any)
	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection_path = ? AND id = ?`,
		collectionPath, id,
	).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("loading document: %w", err)
	default:
		if merged, err = decodeData(raw); err != nil {
			return err
		}
	}
	for k, v := range data {
		merged[k] = v
	}

	encoded, err := encodeData(merged)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (collection_path, id, data) VALUES (?, ?, ?)
		 ON CONFLICT(collection_path, id) DO UPDATE SET data = excluded.data`,
		collectionPath, id, encoded,
	)
	if err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	return tx.Commit()
}

// Delete removes a document. Missing documents are a no-op.
func (s *Store) Delete(ctx context.Context, path string) error {
	collectionPath, id := store.SplitPath(path)

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection_path = ? AND id = ?`,
		collectionPath, id,
	)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.hub.notify(collectionPath)
	}
	return nil
}

// List runs a one-shot query. Filters and ordering address document fields
// through json_extract.
func (s *Store) List(ctx context.Context, q store.Query) ([]store.Document, error) {
	query := `SELECT id, data FROM documents WHERE collection_path = ?`
	args := []any{q.Path}

	if q.Where != nil {
		query += ` AND json_extract(data, ?) = ?`
		args = append(args, "$."+q.Where.Field, q.Where.Equals)
	}
	if q.OrderBy != "" {
		query += ` ORDER BY json_extract(data, ?)`
		args = append(args, "$."+q.OrderBy)
		if q.Descending {
			query += ` DESC`
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		data, err := decodeData(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, store.Document{ID: id, Data: data})
	}
	return docs, rows.Err()
}

// Watch opens a live query; the current snapshot is delivered immediately.
func (s *Store) Watch(ctx context.Context, q store.Query) (store.Watcher, error) {
	return s.hub.watch(ctx, q)
}

func encodeData(data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encoding document data: %w", err)
	}
	return string(raw), nil
}

func decodeData(raw string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decoding document data: %w", err)
	}
	return data, nil
}
