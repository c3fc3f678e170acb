package httpx

import (
	"context"

	domainauth "github.com/stormgate/auth-api/internal/domain/auth"
)

// principalKey is an unexported context key type to avoid collisions
// across packages. Centralized here so handlers and middleware agree.
type principalKey struct{}

// SetPrincipalInContext returns a child context carrying the principal.
func SetPrincipalInContext(ctx context.Context, p domainauth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// GetPrincipalFromContext returns the request principal and whether one
// is present.
func GetPrincipalFromContext(ctx context.Context) (domainauth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domainauth.Principal)
	return p, ok
}
