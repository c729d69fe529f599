package client

import "errors"

var (
	// ErrNotSignedIn indicates an operation that needs an authenticated
	// session was called without one.
	ErrNotSignedIn = errors.New("not signed in")
)
