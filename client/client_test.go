package client_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flexilist/flexisync/client"
	"github.com/flexilist/flexisync/identity"
	"github.com/flexilist/flexisync/identity/mocks"
	"github.com/flexilist/flexisync/store/memstore"
)

func TestClient_PreferencesRequiresSession(t *testing.T) {
	c := client.New(memstore.New(), &mocks.Provider{}, discardLogger())

	_, err := c.Preferences()
	require.ErrorIs(t, err, client.ErrNotSignedIn)
}

func TestClient_PreferencesBoundToCurrentUser(t *testing.T) {
	provider := &mocks.Provider{}
	st := memstore.New()
	c := client.New(st, provider, discardLogger())
	ctx := context.Background()

	provider.On("Exchange", mock.Anything, mock.Anything).
		Return(&identity.Session{UID: "u1"}, nil).Once()
	_, err := c.Sessions.SignIn(ctx, identity.Credential{})
	require.NoError(t, err)

	prefs, err := c.Preferences()
	require.NoError(t, err)
	prefs.SaveLastRoute(ctx, "/home")

	doc, err := st.Get(ctx, "userPreferences/u1")
	require.NoError(t, err)
	require.Equal(t, "/home", doc.Data["lastRoute"])
}
