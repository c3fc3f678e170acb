package service

import (
	"context"
	"log/slog"

	"github.com/stormgate/auth-api/internal/domain/auth"
	apperrors "github.com/stormgate/auth-api/internal/errors"
	"github.com/stormgate/auth-api/internal/ports"
	"github.com/stormgate/auth-api/internal/tokens"
)

// Authenticator resolves a bearer token to a request principal. It
// accepts both token families: internally minted access tokens are
// tried first, then provider-issued federated tokens. Every failure
// maps to the same unauthorized error so callers cannot distinguish
// which path rejected the credential.
type Authenticator struct {
	tokens    *tokens.Service
	federated ports.FederatedVerifier
	users     ports.UserRepository
	logger    *slog.Logger
}

// NewAuthenticator wires the dual-mode token authenticator. The
// federated verifier may be nil, which disables the federated path.
func NewAuthenticator(
	tokenSvc *tokens.Service,
	federated ports.FederatedVerifier,
	users ports.UserRepository,
	logger *slog.Logger,
) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		tokens:    tokenSvc,
		federated: federated,
		users:     users,
		logger:    logger.With("component", "authenticator"),
	}
}

// Authenticate verifies the raw bearer token and returns the principal.
func (a *Authenticator) Authenticate(ctx context.Context, rawToken string) (auth.Principal, error) {
	if rawToken == "" {
		return auth.Principal{}, apperrors.Unauthorized("authentication required")
	}

	if claims, err := a.tokens.VerifyAccess(rawToken); err == nil {
		return auth.Principal{
			UserID:      claims.Subject,
			Email:       claims.Email,
			Role:        claims.Role,
			Application: auth.NormalizeApplication(claims.Application),
		}, nil
	}

	if a.federated == nil {
		return auth.Principal{}, apperrors.Unauthorized("invalid token")
	}

	identity, err := a.federated.Verify(ctx, rawToken)
	if err != nil {
		return auth.Principal{}, apperrors.Unauthorized("invalid token")
	}

	user, err := a.users.GetByFederatedID(ctx, identity.SubjectID)
	if err != nil {
		if apperrors.IsNotFound(err) && identity.EmailOrUsername() != "" {
			user, err = a.users.GetByEmail(ctx, identity.EmailOrUsername())
		}
		if err != nil {
			return auth.Principal{}, apperrors.Unauthorized("invalid token")
		}
	}
	// Status is not checked here. Both token families resolve the same
	// way; PENDING accounts hold limited-access sessions and DENIED
	// accounts are rejected at login and refresh.
	return user.Principal(), nil
}
