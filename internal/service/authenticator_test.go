package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormgate/auth-api/internal/domain/auth"
	"github.com/stormgate/auth-api/internal/domain/model"
	apperrors "github.com/stormgate/auth-api/internal/errors"
	mockauth "github.com/stormgate/auth-api/internal/mocks/auth"
	"github.com/stormgate/auth-api/internal/ports"
)

func newAuthenticator(f *fixture, verifier ports.FederatedVerifier) *Authenticator {
	return NewAuthenticator(f.tokens, verifier, f.users, nil)
}

func TestAuthenticateInternalToken(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, model.User{Email: "a@b.com", Role: auth.RoleAdmin, Status: auth.StatusApproved})

	token, err := f.tokens.IssueAccess(user.Principal())
	require.NoError(t, err)

	principal, err := newAuthenticator(f, nil).Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.UserID)
	assert.Equal(t, auth.RoleAdmin, principal.Role)
}

func TestAuthenticateFederatedFallback(t *testing.T) {
	f := newFixture(t)
	sub := "sub-77"
	user := f.seedUser(t, model.User{
		Email:              "fed@b.com",
		Role:               auth.RoleBasic,
		Status:             auth.StatusApproved,
		Provider:           auth.ProviderFederated,
		FederatedSubjectID: &sub,
	})

	verifier := &mockauth.MockFederatedVerifier{Identities: map[string]auth.Identity{
		"provider-token": {SubjectID: "sub-77", Email: "fed@b.com"},
	}}

	principal, err := newAuthenticator(f, verifier).Authenticate(context.Background(), "provider-token")
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.UserID)
}

func TestAuthenticatePendingAccountBothTokenFamilies(t *testing.T) {
	f := newFixture(t)
	sub := "sub-77"
	user := f.seedUser(t, model.User{
		Email:              "fed@b.com",
		Status:             auth.StatusPending,
		Provider:           auth.ProviderFederated,
		FederatedSubjectID: &sub,
	})
	verifier := &mockauth.MockFederatedVerifier{Identities: map[string]auth.Identity{
		"provider-token": {SubjectID: "sub-77", Email: "fed@b.com"},
	}}
	a := newAuthenticator(f, verifier)

	// A PENDING account authenticates with an internally minted access
	// token and with a provider token alike; neither path checks status.
	access, err := f.tokens.IssueAccess(user.Principal())
	require.NoError(t, err)
	internal, err := a.Authenticate(context.Background(), access)
	require.NoError(t, err)

	federated, err := a.Authenticate(context.Background(), "provider-token")
	require.NoError(t, err)
	assert.Equal(t, internal.UserID, federated.UserID)
}

func TestAuthenticateUniformRejection(t *testing.T) {
	f := newFixture(t)
	verifier := &mockauth.MockFederatedVerifier{}
	a := newAuthenticator(f, verifier)

	_, errEmpty := a.Authenticate(context.Background(), "")
	_, errBad := a.Authenticate(context.Background(), "garbage")
	assert.True(t, apperrors.IsUnauthorized(errEmpty))
	assert.True(t, apperrors.IsUnauthorized(errBad))
}

func TestAuthenticateFederatedAccountByEmail(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, model.User{Email: "linkme@b.com", Status: auth.StatusApproved})

	verifier := &mockauth.MockFederatedVerifier{Identities: map[string]auth.Identity{
		"provider-token": {SubjectID: "sub-new", Email: "linkme@b.com"},
	}}

	principal, err := newAuthenticator(f, verifier).Authenticate(context.Background(), "provider-token")
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.UserID)
}
