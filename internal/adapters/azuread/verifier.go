package azuread

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stormgate/auth-api/config"
	"github.com/stormgate/auth-api/internal/domain/auth"
	apperrors "github.com/stormgate/auth-api/internal/errors"
)

// Verifier validates provider-issued bearer tokens presented directly
// to the API. Azure AD mints tokens under two issuer spellings
// depending on the token version, so both are accepted for the tenant.
type Verifier struct {
	keyset    *Keyset
	issuers   map[string]struct{}
	audiences map[string]struct{}
}

type federatedClaims struct {
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	UPN               string `json:"upn"`
	UniqueName        string `json:"unique_name"`
	Name              string `json:"name"`
	ObjectID          string `json:"oid"`
	jwt.RegisteredClaims
}

// NewVerifier builds a bearer token verifier for the configured tenant.
func NewVerifier(cfg config.AzureADConfig, keyset *Keyset) *Verifier {
	issuers := map[string]struct{}{
		fmt.Sprintf("https://sts.windows.net/%s/", cfg.TenantID):              {},
		fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0", cfg.TenantID): {},
	}
	audiences := map[string]struct{}{
		cfg.ClientID:                   {},
		fmt.Sprintf("api://%s", cfg.ClientID): {},
	}
	if cfg.APIIdentifier != "" {
		audiences[cfg.APIIdentifier] = struct{}{}
	}
	return &Verifier{keyset: keyset, issuers: issuers, audiences: audiences}
}

// Verify checks the token signature against the tenant keyset and its
// issuer and audience against the accepted sets, returning the
// federated identity on success. All failures map to unauthorized.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (auth.Identity, error) {
	claims := &federatedClaims{}
	parsed, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}
		return v.keyset.Key(ctx, kid)
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil || !parsed.Valid {
		return auth.Identity{}, apperrors.Unauthorized("invalid federated token")
	}
	if _, ok := v.issuers[claims.Issuer]; !ok {
		return auth.Identity{}, apperrors.Unauthorized("unexpected token issuer")
	}
	if !v.audienceAccepted(claims.Audience) {
		return auth.Identity{}, apperrors.Unauthorized("unexpected token audience")
	}

	subject := claims.ObjectID
	if subject == "" {
		subject = claims.Subject
	}
	return auth.Identity{
		SubjectID:         subject,
		Email:             strings.ToLower(firstNonEmpty(claims.Email, claims.UPN, claims.UniqueName)),
		PreferredUsername: strings.ToLower(claims.PreferredUsername),
		Name:              claims.Name,
	}, nil
}

func (v *Verifier) audienceAccepted(aud jwt.ClaimStrings) bool {
	for _, a := range aud {
		if _, ok := v.audiences[a]; ok {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
