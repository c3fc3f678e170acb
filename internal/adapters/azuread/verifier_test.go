package azuread

import (
	"context"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormgate/auth-api/config"
	apperrors "github.com/stormgate/auth-api/internal/errors"
)

const (
	testTenant   = "11111111-2222-3333-4444-555555555555"
	testClientID = "client-abc"
)

func testVerifier(t *testing.T, key *rsa.PrivateKey) *Verifier {
	t.Helper()
	ks := NewKeysetWithFetcher(func(context.Context) ([]byte, error) {
		return jwksFor(t, "kid-1", &key.PublicKey), nil
	}, time.Hour)
	return NewVerifier(config.AzureADConfig{
		TenantID:      testTenant,
		ClientID:      testClientID,
		APIIdentifier: "api://custom-identifier",
	}, ks)
}

func signFederated(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}

func baseClaims(issuer string) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   issuer,
		"aud":   testClientID,
		"sub":   "sub-1",
		"oid":   "oid-1",
		"email": "User@Example.com",
		"name":  "Test User",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}
}

func TestVerifyAcceptsBothIssuers(t *testing.T) {
	key := testRSAKey(t)
	v := testVerifier(t, key)

	issuers := []string{
		"https://sts.windows.net/" + testTenant + "/",
		"https://login.microsoftonline.com/" + testTenant + "/v2.0",
	}
	for _, iss := range issuers {
		token := signFederated(t, key, "kid-1", baseClaims(iss))
		identity, err := v.Verify(context.Background(), token)
		require.NoError(t, err, iss)
		assert.Equal(t, "oid-1", identity.SubjectID)
		assert.Equal(t, "user@example.com", identity.Email)
	}
}

func TestVerifyRejectsForeignIssuer(t *testing.T) {
	key := testRSAKey(t)
	v := testVerifier(t, key)

	claims := baseClaims("https://sts.windows.net/other-tenant/")
	_, err := v.Verify(context.Background(), signFederated(t, key, "kid-1", claims))
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestVerifyAudiences(t *testing.T) {
	key := testRSAKey(t)
	v := testVerifier(t, key)
	iss := "https://login.microsoftonline.com/" + testTenant + "/v2.0"

	for _, aud := range []string{testClientID, "api://" + testClientID, "api://custom-identifier"} {
		claims := baseClaims(iss)
		claims["aud"] = aud
		_, err := v.Verify(context.Background(), signFederated(t, key, "kid-1", claims))
		assert.NoError(t, err, aud)
	}

	claims := baseClaims(iss)
	claims["aud"] = "someone-else"
	_, err := v.Verify(context.Background(), signFederated(t, key, "kid-1", claims))
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestVerifyRejectsExpired(t *testing.T) {
	key := testRSAKey(t)
	v := testVerifier(t, key)

	claims := baseClaims("https://login.microsoftonline.com/" + testTenant + "/v2.0")
	claims["exp"] = time.Now().Add(-time.Minute).Unix()
	_, err := v.Verify(context.Background(), signFederated(t, key, "kid-1", claims))
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestVerifyRejectsUnknownKid(t *testing.T) {
	key := testRSAKey(t)
	v := testVerifier(t, key)

	claims := baseClaims("https://login.microsoftonline.com/" + testTenant + "/v2.0")
	_, err := v.Verify(context.Background(), signFederated(t, key, "kid-unknown", claims))
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestVerifyFallsBackToUPN(t *testing.T) {
	key := testRSAKey(t)
	v := testVerifier(t, key)

	claims := baseClaims("https://sts.windows.net/" + testTenant + "/")
	delete(claims, "email")
	claims["upn"] = "UPN@Example.com"
	identity, err := v.Verify(context.Background(), signFederated(t, key, "kid-1", claims))
	require.NoError(t, err)
	assert.Equal(t, "upn@example.com", identity.Email)
}
