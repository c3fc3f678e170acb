package azuread

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/stormgate/auth-api/internal/errors"
)

// jwk is the subset of an RFC 7517 key entry needed for RS256.
type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

// KeysetFetcher retrieves the raw JWKS document. Injectable for tests.
type KeysetFetcher func(ctx context.Context) ([]byte, error)

// Keyset caches the tenant's published signing keys. Lookups hit the
// cache until the TTL lapses; refreshes are deduplicated so a burst of
// requests after expiry triggers a single upstream fetch.
type Keyset struct {
	fetch KeysetFetcher
	ttl   time.Duration
	now   func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewKeyset builds a keyset for the tenant's v2.0 discovery keys URL.
func NewKeyset(tenantID string, ttl time.Duration) *Keyset {
	url := fmt.Sprintf("https://login.microsoftonline.com/%s/discovery/v2.0/keys", tenantID)
	client := &http.Client{Timeout: 10 * time.Second}
	return NewKeysetWithFetcher(func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}, ttl)
}

// NewKeysetWithFetcher builds a keyset with a custom fetcher and clock
// defaults. Tests use this to avoid the network.
func NewKeysetWithFetcher(fetch KeysetFetcher, ttl time.Duration) *Keyset {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Keyset{
		fetch: fetch,
		ttl:   ttl,
		now:   time.Now,
		keys:  map[string]*rsa.PublicKey{},
	}
}

// WithClock overrides the cache clock. Test use only.
func (k *Keyset) WithClock(now func() time.Time) *Keyset {
	k.now = now
	return k
}

// Key returns the RSA public key for the given key id, refreshing the
// cache when it is stale. An unknown kid after a fresh fetch is an
// unauthorized error, not an upstream one.
func (k *Keyset) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, fresh := k.lookup(kid); fresh {
		if key == nil {
			return nil, apperrors.Unauthorized("unknown signing key")
		}
		return key, nil
	}

	if _, err, _ := k.group.Do("refresh", func() (any, error) {
		return nil, k.refresh(ctx)
	}); err != nil {
		// Serve a stale key over failing outright when we still have one.
		if key, _ := k.lookup(kid); key != nil {
			return key, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUpstream, "signing key refresh failed")
	}

	key, _ := k.lookup(kid)
	if key == nil {
		return nil, apperrors.Unauthorized("unknown signing key")
	}
	return key, nil
}

func (k *Keyset) lookup(kid string) (*rsa.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	fresh := !k.fetchedAt.IsZero() && k.now().Sub(k.fetchedAt) < k.ttl
	return k.keys[kid], fresh
}

func (k *Keyset) refresh(ctx context.Context) error {
	raw, err := k.fetch(ctx)
	if err != nil {
		return err
	}
	var doc jwksDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse jwks document: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, entry := range doc.Keys {
		if entry.Kty != "RSA" || entry.Kid == "" {
			continue
		}
		pub, err := jwkToPublicKey(entry)
		if err != nil {
			continue
		}
		keys[entry.Kid] = pub
	}
	k.mu.Lock()
	k.keys = keys
	k.fetchedAt = k.now()
	k.mu.Unlock()
	return nil
}

func jwkToPublicKey(entry jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(entry.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(entry.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e == 0 {
		return nil, fmt.Errorf("zero exponent")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
