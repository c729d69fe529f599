// Package identity defines the contract consumed from the external identity
// provider: exchange a platform credential for a session, invalidate it, and
// delete the account behind it. The provider is opaque; token refresh and
// credential storage are its problem.
package identity

import "context"

// Session is an authenticated identity plus profile data. All components
// outside this package treat it as read-only and react to its replacement.
type Session struct {
	UID          string
	Email        string
	DisplayName  string
	PhotoURL     string
	Token        string
	RefreshToken string
}

// Credential is a platform-specific proof of identity: an OAuth id token
// from Google sign-in, or a native Apple Sign-In assertion.
type Credential struct {
	// ProviderID names the upstream IdP, e.g. "google.com" or "apple.com".
	ProviderID string
	// IDToken is the OAuth/OIDC id token asserted by the IdP.
	IDToken string
	// AccessToken optionally accompanies the id token for some IdPs.
	AccessToken string
	// Nonce is required for Apple Sign-In assertions.
	Nonce string
}

// Provider issues and destroys sessions.
type Provider interface {
	// Exchange trades a credential for a session.
	Exchange(ctx context.Context, cred Credential) (*Session, error)
	// SignOut invalidates the session's tokens. Local invalidation is
	// always sufficient; remote revocation is best-effort.
	SignOut(ctx context.Context, sess *Session) error
	// Delete destroys the identity itself. Returns
	// ErrReauthenticationRequired when the session is too old for such a
	// sensitive operation; callers must re-authenticate and retry.
	Delete(ctx context.Context, sess *Session) error
}
