// Package rest implements identity.Provider against a Firebase-Auth-style
// HTTP API: accounts:signInWithIdp for credential exchange and
// accounts:delete for account destruction.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flexilist/flexisync/identity"
)

// Provider calls the identity endpoint over HTTP.
type Provider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// New creates a REST identity provider. baseURL is the API root (e.g.
// "https://identitytoolkit.googleapis.com/v1"), apiKey the project key
// appended to every call.
func New(baseURL, apiKey string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Exchange trades an IdP credential for a session.
func (p *Provider) Exchange(ctx context.Context, cred identity.Credential) (*identity.Session, error) {
	if cred.IDToken == "" {
		return nil, identity.ErrInvalidCredential
	}

	postBody := url.Values{}
	postBody.Set("id_token", cred.IDToken)
	postBody.Set("providerId", cred.ProviderID)
	if cred.AccessToken != "" {
		postBody.Set("access_token", cred.AccessToken)
	}
	if cred.Nonce != "" {
		postBody.Set("nonce", cred.Nonce)
	}

	payload := map[string]any{
		"postBody":          postBody.Encode(),
		"requestUri":        "http://localhost",
		"returnSecureToken": true,
	}

	var resp signInResponse
	if err := p.post(ctx, "accounts:signInWithIdp", payload, &resp); err != nil {
		return nil, err
	}
	if resp.LocalID == "" || resp.IDToken == "" {
		return nil, fmt.Errorf("sign-in response missing identity: %w", identity.ErrInvalidCredential)
	}

	return &identity.Session{
		UID:          resp.LocalID,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		PhotoURL:     resp.PhotoURL,
		Token:        resp.IDToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

// SignOut invalidates the session locally. The endpoint has no token
// revocation call for id tokens; they simply age out.
func (p *Provider) SignOut(ctx context.Context, sess *identity.Session) error {
	if sess == nil {
		return identity.ErrNoSession
	}
	sess.Token = ""
	sess.RefreshToken = ""
	return nil
}

// Delete destroys the account behind the session.
func (p *Provider) Delete(ctx context.Context, sess *identity.Session) error {
	if sess == nil || sess.Token == "" {
		return identity.ErrNoSession
	}
	err := p.post(ctx, "accounts:delete", map[string]any{"idToken": sess.Token}, &struct{}{})
	if err != nil {
		return err
	}
	return nil
}

func (p *Provider) post(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s?key=%s", p.baseURL, method, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling identity endpoint: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return p.mapError(method, resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (p *Provider) mapError(method string, status int, data []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(data, &apiErr); err != nil || apiErr.Error.Message == "" {
		return fmt.Errorf("%s failed with status %d", method, status)
	}

	msg := apiErr.Error.Message
	p.logger.Debug("identity endpoint error", "method", method, "status", status, "message", msg)

	switch {
	case strings.HasPrefix(msg, "CREDENTIAL_TOO_OLD_LOGIN_AGAIN"),
		strings.HasPrefix(msg, "TOKEN_EXPIRED"):
		return identity.ErrReauthenticationRequired
	case strings.HasPrefix(msg, "INVALID_IDP_RESPONSE"),
		strings.HasPrefix(msg, "INVALID_ID_TOKEN"),
		strings.HasPrefix(msg, "USER_DISABLED"):
		return fmt.Errorf("%s: %w", msg, identity.ErrInvalidCredential)
	default:
		return fmt.Errorf("%s: %s", method, msg)
	}
}
