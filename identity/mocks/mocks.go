package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/flexilist/flexisync/identity"
)

// Provider is a mock for identity.Provider.
type Provider struct {
	mock.Mock
}

func (m *Provider) Exchange(ctx context.Context, cred identity.Credential) (*identity.Session, error) {
	args := m.Called(ctx, cred)
	if sess, ok := args.Get(0).(*identity.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Provider) SignOut(ctx context.Context, sess *identity.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *Provider) Delete(ctx context.Context, sess *identity.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}
