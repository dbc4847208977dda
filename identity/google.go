// Package identity signs dashboard users in with Google before handing the verified
// ID token to the POSPort backend.
package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/posport-gateway/internal/config"
	"github.com/jrsteele09/posport-gateway/internal/errors"
	"golang.org/x/oauth2"
)

// GoogleProvider runs the authorization code flow (with PKCE and nonce) against Google or
// any other OIDC issuer configured in its place. Discovery happens on first use and is cached.
type GoogleProvider struct {
	issuer       string
	clientID     string
	clientSecret string
	redirectURL  string

	mu           sync.Mutex
	provider     *oidc.Provider
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
}

func NewGoogleProvider(cfg config.OAuthConfig) *GoogleProvider {
	return &GoogleProvider{
		issuer:       cfg.GetGoogleIssuer(),
		clientID:     cfg.GetGoogleClientID(),
		clientSecret: cfg.GetGoogleClientSecret(),
		redirectURL:  cfg.GetOAuthRedirectURL(),
	}
}

// Enabled is false when no client ID is configured.
func (g *GoogleProvider) Enabled() bool {
	return g.clientID != ""
}

// AuthCodeURL returns the consent screen URL for state.
func (g *GoogleProvider) AuthCodeURL(ctx context.Context, state, nonce, codeVerifier string) (string, error) {
	cfg, _, err := g.discover(ctx)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.S256ChallengeOption(codeVerifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	), nil
}

// Exchange swaps the authorization code for tokens and returns the raw ID token once its
// signature, audience, expiry and nonce have been verified.
func (g *GoogleProvider) Exchange(ctx context.Context, code, codeVerifier, nonce string) (string, error) {
	cfg, verifier, err := g.discover(ctx)
	if err != nil {
		return "", err
	}

	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return "", fmt.Errorf("[GoogleProvider Exchange] token exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", fmt.Errorf("[GoogleProvider Exchange] %w: no id_token in response", errors.ErrInvalidRequest)
	}

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", fmt.Errorf("[GoogleProvider Exchange] id token verification failed: %w", err)
	}
	if idToken.Nonce != nonce {
		return "", errors.ErrInvalidNonce
	}
	return rawIDToken, nil
}

func (g *GoogleProvider) discover(ctx context.Context) (*oauth2.Config, *oidc.IDTokenVerifier, error) {
	if !g.Enabled() {
		return nil, nil, fmt.Errorf("[GoogleProvider] %w: google sign-in is not configured", errors.ErrInvalidRequest)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.provider != nil {
		return g.oauth2Config, g.verifier, nil
	}

	provider, err := oidc.NewProvider(ctx, g.issuer)
	if err != nil {
		return nil, nil, fmt.Errorf("[GoogleProvider] failed to create OIDC provider: %w", err)
	}
	g.provider = provider
	g.oauth2Config = &oauth2.Config{
		ClientID:     g.clientID,
		ClientSecret: g.clientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  g.redirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	g.verifier = provider.Verifier(&oidc.Config{ClientID: g.clientID})
	return g.oauth2Config, g.verifier, nil
}
