package rest

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/flexilist/flexisync/identity"
)

// googleEndpoint matches golang.org/x/oauth2/google without importing the
// whole google package.
var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// GoogleExchanger turns an OAuth2 authorization code from Google sign-in
// into an identity.Credential suitable for Provider.Exchange.
type GoogleExchanger struct {
	config oauth2.Config
}

// NewGoogleExchanger creates an exchanger for the given OAuth client.
func NewGoogleExchanger(clientID, clientSecret, redirectURL string) *GoogleExchanger {
	return &GoogleExchanger{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     googleEndpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
	}
}

// AuthURL returns the URL to send the user to for consent.
func (g *GoogleExchanger) AuthURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for an IdP credential.
func (g *GoogleExchanger) Exchange(ctx context.Context, code string) (identity.Credential, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return identity.Credential{}, fmt.Errorf("exchanging authorization code: %w", err)
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return identity.Credential{}, fmt.Errorf("token response missing id_token: %w", identity.ErrInvalidCredential)
	}

	return identity.Credential{
		ProviderID:  "google.com",
		IDToken:     idToken,
		AccessToken: token.AccessToken,
	}, nil
}
