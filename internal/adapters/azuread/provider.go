// Package azuread implements the federated identity provider adapter:
// the browser authorization code flow with PKCE, and direct
// verification of provider-issued bearer tokens against the tenant's
// published signing keys.
package azuread

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/stormgate/auth-api/config"
	"github.com/stormgate/auth-api/internal/domain/auth"
	apperrors "github.com/stormgate/auth-api/internal/errors"
)

// flowTTL bounds how long an in-flight login may take between the
// redirect to the provider and the callback.
const flowTTL = 10 * time.Minute

// Provider drives the authorization code + PKCE flow against Azure AD
// v2.0 endpoints.
type Provider struct {
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
	now      func() time.Time
}

// NewProvider discovers the tenant's OIDC configuration and builds the
// flow driver. It performs a network round trip and should be called
// once at startup.
func NewProvider(ctx context.Context, cfg config.AzureADConfig) (*Provider, error) {
	issuer := fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0", cfg.TenantID)
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}
	return &Provider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       strings.Fields(cfg.Scope),
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		now:      time.Now,
	}, nil
}

// Begin creates a login flow with fresh state, nonce and PKCE verifier,
// and returns the authorization URL for the browser redirect.
func (p *Provider) Begin(_ context.Context, application auth.Application, returnTo string) (*auth.LoginFlow, string, error) {
	state, err := randomToken(32)
	if err != nil {
		return nil, "", err
	}
	nonce, err := randomToken(32)
	if err != nil {
		return nil, "", err
	}
	now := p.now()
	flow := &auth.LoginFlow{
		State:        state,
		Nonce:        nonce,
		CodeVerifier: oauth2.GenerateVerifier(),
		Application:  application,
		ReturnTo:     returnTo,
		CreatedAt:    now,
		ExpiresAt:    now.Add(flowTTL),
	}
	url := p.oauth.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.S256ChallengeOption(flow.CodeVerifier),
	)
	return flow, url, nil
}

// Exchange redeems the authorization code, verifies the ID token and
// binds it to the flow nonce.
func (p *Provider) Exchange(ctx context.Context, code string, flow *auth.LoginFlow) (auth.Identity, error) {
	token, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(flow.CodeVerifier))
	if err != nil {
		return auth.Identity{}, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "authorization code exchange failed")
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return auth.Identity{}, apperrors.Unauthorized("provider response missing id_token")
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return auth.Identity{}, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "id token verification failed")
	}
	if idToken.Nonce != flow.Nonce {
		return auth.Identity{}, apperrors.Unauthorized("nonce mismatch")
	}

	var claims struct {
		Email             string `json:"email"`
		PreferredUsername string `json:"preferred_username"`
		Name              string `json:"name"`
		ObjectID          string `json:"oid"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return auth.Identity{}, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "id token claims unreadable")
	}

	subject := claims.ObjectID
	if subject == "" {
		subject = idToken.Subject
	}
	return auth.Identity{
		SubjectID:         subject,
		Email:             strings.ToLower(claims.Email),
		PreferredUsername: strings.ToLower(claims.PreferredUsername),
		Name:              claims.Name,
	}, nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
