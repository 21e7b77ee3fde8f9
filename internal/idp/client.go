// Package idp implements the authorization-code exchange against the
// upstream OIDC identity provider. The provider endpoint set is discovered
// once at startup; id_tokens are verified against the provider's published
// JWKS via coreos/go-oidc.
package idp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// requestTimeout bounds every outbound call to the identity provider —
// discovery, token exchange, and JWKS fetches alike.
const requestTimeout = 10 * time.Second

// Config holds the static provider configuration. All fields are required
// except Scopes, which defaults to "openid profile email".
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Client performs the authorization-code-to-claims exchange. It is safe for
// concurrent use.
type Client struct {
	oauth2Cfg *oauth2.Config
	verifier  *gooidc.IDTokenVerifier
	http      *http.Client
}

// New discovers the provider's endpoints from the issuer URL and returns a
// ready Client. Discovery failure is fatal — the bridge cannot operate
// without a reachable provider configuration.
func New(ctx context.Context, cfg Config) (*Client, error) {
	httpClient := &http.Client{Timeout: requestTimeout}
	ctx = gooidc.ClientContext(ctx, httpClient)

	provider, err := gooidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("idp: discovering provider for issuer %q: %w", cfg.IssuerURL, err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "profile", "email"}
	}

	return &Client{
		oauth2Cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		verifier: provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		http:     httpClient,
	}, nil
}

// AuthCodeURL returns the provider's authorization URL with the given state
// parameter. The caller stores state in a short-lived cookie before
// redirecting the user.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth2Cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange redeems an authorization code, verifies the returned id_token,
// and maps its claims onto a Claims value. Errors are classified into the
// package sentinels: transport failures are ErrUpstreamUnavailable, a
// rejected code is ErrInvalidGrant, and verification or shape failures are
// ErrClaimsDecode.
func (c *Client) Exchange(ctx context.Context, code string) (*Claims, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	token, err := c.oauth2Cfg.Exchange(ctx, code)
	if err != nil {
		return nil, classifyExchangeError(err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: token response missing id_token", ErrClaimsDecode)
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: verifying id_token: %v", ErrClaimsDecode, err)
	}

	var raw rawClaims
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling claims: %v", ErrClaimsDecode, err)
	}

	return mapClaims(raw)
}

// classifyExchangeError distinguishes a provider-side rejection of the code
// (invalid_grant, or any 4xx token response) from transport-level failure.
// The distinction matters: a rejected code means the user must restart
// login, while an unreachable provider means they may simply retry.
func classifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" {
			return fmt.Errorf("%w: %v", ErrInvalidGrant, err)
		}
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 400 && retrieveErr.Response.StatusCode < 500 {
			return fmt.Errorf("%w: %v", ErrInvalidGrant, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}
