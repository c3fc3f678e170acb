package azuread

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/stormgate/auth-api/internal/errors"
)

func testRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func jwksFor(t *testing.T, kid string, pub *rsa.PublicKey) []byte {
	t.Helper()
	e := big.NewInt(int64(pub.E))
	doc := jwksDocument{Keys: []jwk{{
		Kid: kid,
		Kty: "RSA",
		Use: "sig",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(e.Bytes()),
	}}}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

func TestKeysetFetchesAndCaches(t *testing.T) {
	key := testRSAKey(t)
	fetches := 0
	ks := NewKeysetWithFetcher(func(context.Context) ([]byte, error) {
		fetches++
		return jwksFor(t, "kid-1", &key.PublicKey), nil
	}, time.Hour)

	got, err := ks.Key(context.Background(), "kid-1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.N.Cmp(key.PublicKey.N))

	// Second lookup within the TTL must not refetch.
	_, err = ks.Key(context.Background(), "kid-1")
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)
}

func TestKeysetRefreshesAfterTTL(t *testing.T) {
	key := testRSAKey(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fetches := 0
	ks := NewKeysetWithFetcher(func(context.Context) ([]byte, error) {
		fetches++
		return jwksFor(t, "kid-1", &key.PublicKey), nil
	}, time.Hour).WithClock(func() time.Time { return now })

	_, err := ks.Key(context.Background(), "kid-1")
	require.NoError(t, err)

	now = now.Add(61 * time.Minute)
	_, err = ks.Key(context.Background(), "kid-1")
	require.NoError(t, err)
	assert.Equal(t, 2, fetches)
}

func TestKeysetUnknownKid(t *testing.T) {
	key := testRSAKey(t)
	ks := NewKeysetWithFetcher(func(context.Context) ([]byte, error) {
		return jwksFor(t, "kid-1", &key.PublicKey), nil
	}, time.Hour)

	_, err := ks.Key(context.Background(), "kid-other")
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestKeysetServesStaleOnFetchFailure(t *testing.T) {
	key := testRSAKey(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	healthy := true
	ks := NewKeysetWithFetcher(func(context.Context) ([]byte, error) {
		if !healthy {
			return nil, fmt.Errorf("upstream down")
		}
		return jwksFor(t, "kid-1", &key.PublicKey), nil
	}, time.Hour).WithClock(func() time.Time { return now })

	_, err := ks.Key(context.Background(), "kid-1")
	require.NoError(t, err)

	healthy = false
	now = now.Add(2 * time.Hour)
	_, err = ks.Key(context.Background(), "kid-1")
	assert.NoError(t, err)
}

func TestKeysetFetchFailureWithoutCache(t *testing.T) {
	ks := NewKeysetWithFetcher(func(context.Context) ([]byte, error) {
		return nil, fmt.Errorf("upstream down")
	}, time.Hour)

	_, err := ks.Key(context.Background(), "kid-1")
	assert.True(t, apperrors.IsUpstream(err))
}
