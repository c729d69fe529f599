package store

import "errors"

var (
	// ErrNotFound is returned when a requested document doesn't exist
	ErrNotFound = errors.New("document not found")

	// ErrClosed is returned by operations on a closed store or watcher
	ErrClosed = errors.New("store closed")

	// ErrInvalidQuery is returned for queries the store cannot serve
	ErrInvalidQuery = errors.New("invalid query")
)
