package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/flexilist/flexisync/identity"
	"github.com/flexilist/flexisync/store"
)

// State is the session lifecycle state.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateSigningOut
	StateDeletingAccount
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateSigningOut:
		return "signing-out"
	case StateDeletingAccount:
		return "deleting-account"
	default:
		return "unknown"
	}
}

// SessionProvider holds the current authenticated identity and notifies
// dependents when it is replaced. All other components treat the session
// as read-only.
type SessionProvider struct {
	provider identity.Provider
	store    store.Store
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	current  *identity.Session
	watchers []chan *identity.Session
}

// NewSessionProvider creates a session provider.
func NewSessionProvider(provider identity.Provider, st store.Store, logger *slog.Logger) *SessionProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionProvider{
		provider: provider,
		store:    st,
		logger:   logger,
		state:    StateUnauthenticated,
	}
}

// Current returns the active session, or nil.
func (p *SessionProvider) Current() *identity.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// State returns the lifecycle state.
func (p *SessionProvider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Changes returns a channel delivering the session each time it is
// replaced (nil on sign-out). Conflated: a slow consumer only sees the
// latest value.
func (p *SessionProvider) Changes() <-chan *identity.Session {
	ch := make(chan *identity.Session, 1)
	p.mu.Lock()
	p.watchers = append(p.watchers, ch)
	p.mu.Unlock()
	return ch
}

// SignIn exchanges a credential for a session and makes it current.
func (p *SessionProvider) SignIn(ctx context.Context, cred identity.Credential) (*identity.Session, error) {
	p.setState(StateAuthenticating)

	sess, err := p.provider.Exchange(ctx, cred)
	if err != nil {
		p.setState(StateUnauthenticated)
		return nil, fmt.Errorf("signing in: %w", err)
	}

	p.replaceSession(sess, StateAuthenticated)
	p.logger.Info("signed in", "uid", sess.UID)
	return sess, nil
}

// SignOut invalidates the current session locally and remotely.
func (p *SessionProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	sess := p.current
	p.mu.Unlock()
	if sess == nil {
		return ErrNotSignedIn
	}

	p.setState(StateSigningOut)
	if err := p.provider.SignOut(ctx, sess); err != nil {
		p.setState(StateAuthenticated)
		return fmt.Errorf("signing out: %w", err)
	}

	p.replaceSession(nil, StateUnauthenticated)
	p.logger.Info("signed out", "uid", sess.UID)
	return nil
}

// DeleteAccount purges everything the session owns, then the identity
// itself. The order is fixed: items, then their list, then preferences,
// then the identity, so no orphaned child data can outlive its parent if
// a later step fails. The sequence is not transactional; every destructive
// step is idempotent (deleting an already-deleted entity is a no-op), so a
// retry after a partial failure resumes safely.
//
// identity.ErrReauthenticationRequired passes through untranslated: the
// caller must prompt for a fresh credential and call DeleteAccount again,
// never silently drop the deletion.
func (p *SessionProvider) DeleteAccount(ctx context.Context) error {
	p.mu.Lock()
	sess := p.current
	p.mu.Unlock()
	if sess == nil {
		return ErrNotSignedIn
	}

	p.setState(StateDeletingAccount)
	if err := p.purgeOwnedData(ctx, sess.UID); err != nil {
		p.setState(StateAuthenticated)
		return err
	}

	if err := p.provider.Delete(ctx, sess); err != nil {
		p.setState(StateAuthenticated)
		return fmt.Errorf("deleting identity: %w", err)
	}

	p.replaceSession(nil, StateUnauthenticated)
	p.logger.Info("account deleted", "uid", sess.UID)
	return nil
}

func (p *SessionProvider) purgeOwnedData(ctx context.Context, uid string) error {
	lists, err := p.store.List(ctx, store.Query{
		Path:  listsCollection,
		Where: &store.Filter{Field: "ownerId", Equals: uid},
	})
	if err != nil {
		return fmt.Errorf("enumerating lists: %w", err)
	}

	for _, listDoc := range lists {
		items, err := p.store.List(ctx, store.Query{Path: itemsCollection(listDoc.ID)})
		if err != nil {
			return fmt.Errorf("enumerating items of %s: %w", listDoc.ID, err)
		}
		for _, itemDoc := range items {
			if err := p.store.Delete(ctx, itemPath(listDoc.ID, itemDoc.ID)); err != nil {
				return fmt.Errorf("deleting item %s: %w", itemDoc.ID, err)
			}
		}
		if err := p.store.Delete(ctx, listPath(listDoc.ID)); err != nil {
			return fmt.Errorf("deleting list %s: %w", listDoc.ID, err)
		}
	}

	if err := p.store.Delete(ctx, prefsPath(uid)); err != nil {
		return fmt.Errorf("deleting preferences: %w", err)
	}
	return nil
}

func (p *SessionProvider) setState(state State) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

func (p *SessionProvider) replaceSession(sess *identity.Session, state State) {
	p.mu.Lock()
	p.current = sess
	p.state = state
	watchers := make([]chan *identity.Session, len(p.watchers))
	copy(watchers, p.watchers)
	p.mu.Unlock()

	for _, ch := range watchers {
		select {
		case <-ch:
		default:
		}
		ch <- sess
	}
}
