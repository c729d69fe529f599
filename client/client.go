package client

import (
	"log/slog"

	"github.com/flexilist/flexisync/identity"
	"github.com/flexilist/flexisync/store"
)

// Client bundles the synchronizer's components around one store and one
// identity provider. It is an explicitly constructed object passed by
// reference to whatever needs it; there is no ambient global state.
type Client struct {
	Sessions      *SessionProvider
	Subscriptions *Manager
	Gateway       *Gateway
	Aggregator    *Aggregator

	store  store.Store
	logger *slog.Logger
}

// New wires a client. Construction is cheap and side-effect free; nothing
// contacts the store until a subscription or mutation is issued.
func New(st store.Store, provider identity.Provider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	manager := NewManager(st, logger)
	return &Client{
		Sessions:      NewSessionProvider(provider, st, logger),
		Subscriptions: manager,
		Gateway:       NewGateway(st, logger),
		Aggregator:    NewAggregator(manager),
		store:         st,
		logger:        logger,
	}
}

// Preferences returns a preference store bound to the current session.
// Returns ErrNotSignedIn without one.
func (c *Client) Preferences() (*PreferenceStore, error) {
	sess := c.Sessions.Current()
	if sess == nil {
		return nil, ErrNotSignedIn
	}
	return NewPreferenceStore(c.store, sess.UID, c.logger), nil
}
