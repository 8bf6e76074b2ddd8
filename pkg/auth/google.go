package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const PromptSelectAccount = "select_account"

// Google is the registration of this service as an OAuth client at Google,
// configured from the provider's discovery document.
type Google struct {
	config   oauth2.Config
	verifier *oidc.IDTokenVerifier
	client   *http.Client
}

// NewGoogle discovers the provider metadata at issuer. The client is used for
// discovery, key fetches and code exchanges; nil means http.DefaultClient.
func NewGoogle(ctx context.Context, issuer, clientID, clientSecret string, scopes []string, client *http.Client) (*Google, error) {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discovering provider %s: %w", issuer, err)
	}

	return &Google{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		client:   client,
	}, nil
}

// AuthCodeURL returns the provider URL the browser is sent to. With
// selectAccount the provider shows its account chooser instead of silently
// reusing a previous sign in.
func (g *Google) AuthCodeURL(state, nonce, redirectURL string, selectAccount bool) string {
	cfg := g.config
	cfg.RedirectURL = redirectURL

	opts := []oauth2.AuthCodeOption{oidc.Nonce(nonce)}
	if selectAccount {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", PromptSelectAccount))
	}

	return cfg.AuthCodeURL(state, opts...)
}

// Exchange trades the authorization code for tokens and verifies the
// id_token against nonce. Failures the user should see are *OAuthError; any
// other error is a transport problem.
func (g *Google) Exchange(ctx context.Context, code, redirectURL, nonce string) (*Token, error) {
	if g.client != nil {
		ctx = oidc.ClientContext(ctx, g.client)
	}

	cfg := g.config
	cfg.RedirectURL = redirectURL

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, fromRetrieveError(re)
		}

		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return newToken(tok, "", nil)
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, NewOAuthError(ErrCodeInvalidIDToken, err.Error())
	}

	if idToken.Nonce != nonce {
		return nil, NewOAuthError(ErrCodeInvalidNonce, "nonce in id_token does not match the login request")
	}

	t, err := newToken(tok, rawIDToken, idToken)
	if err != nil {
		return nil, NewOAuthError(ErrCodeInvalidIDToken, err.Error())
	}

	return t, nil
}
