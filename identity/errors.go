package identity

import "errors"

var (
	// ErrInvalidCredential indicates the credential was rejected by the
	// provider.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrReauthenticationRequired indicates the session is too old for a
	// sensitive operation. The caller must obtain a fresh credential and
	// retry; dropping the operation silently is not acceptable.
	ErrReauthenticationRequired = errors.New("reauthentication required")

	// ErrNoSession indicates an operation that needs a session was called
	// without one.
	ErrNoSession = errors.New("no authenticated session")
)
