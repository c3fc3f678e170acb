// Package ports defines the interfaces between the service layer and
// its adapters. Services depend only on these interfaces; wiring picks
// the concrete implementations.
package ports

import (
	"context"
	"time"

	"github.com/stormgate/auth-api/internal/domain/auth"
	"github.com/stormgate/auth-api/internal/domain/model"
)

// IdentityProvider abstracts the federated OIDC provider.
type IdentityProvider interface {
	// Begin creates a new login flow for the given application and
	// returns it together with the provider authorization URL the
	// browser should be redirected to.
	Begin(ctx context.Context, application auth.Application, returnTo string) (*auth.LoginFlow, string, error)

	// Exchange redeems an authorization code using the flow's PKCE
	// verifier, verifies the resulting ID token against the flow nonce
	// and returns the federated identity.
	Exchange(ctx context.Context, code string, flow *auth.LoginFlow) (auth.Identity, error)
}

// FederatedVerifier validates provider-issued bearer tokens presented
// directly to the API, outside the browser login flow.
type FederatedVerifier interface {
	Verify(ctx context.Context, rawToken string) (auth.Identity, error)
}

// FlowStore persists in-flight login flows keyed by state. Consume is
// atomic: concurrent callbacks with the same state yield the flow to at
// most one caller.
type FlowStore interface {
	Create(ctx context.Context, flow *auth.LoginFlow) error
	Consume(ctx context.Context, state string) (*auth.LoginFlow, error)

	// SweepExpired drops flows past their deadline. Implementations with
	// native key expiry may make this a no-op.
	SweepExpired(ctx context.Context) error
}

// RefreshTokenStore keeps the single currently-valid refresh token per
// user, so issuing a new one or logging out revokes the old.
type RefreshTokenStore interface {
	Set(ctx context.Context, userID, token string, ttl time.Duration) error
	Get(ctx context.Context, userID string) (string, error)
	Delete(ctx context.Context, userID string) error
}

// UserRepository persists account records.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByFederatedID(ctx context.Context, subjectID string) (*model.User, error)
	GetByResetTokenHash(ctx context.Context, hash string) (*model.User, error)

	UpdateProfile(ctx context.Context, id string, update model.ProfileUpdate) (*model.User, error)
	SetStatus(ctx context.Context, id string, status auth.Status) (*model.User, error)
	SetFederatedID(ctx context.Context, id, subjectID string) error
	SetPassword(ctx context.Context, id, passwordHash string) error
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id string) error

	ListByStatus(ctx context.Context, status auth.Status, limit, offset int) ([]model.User, error)
	ListAll(ctx context.Context, limit, offset int) ([]model.User, error)
}

// Email is an outbound message handed to the mail integrator.
type Email struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Vars     map[string]string `json:"vars,omitempty"`
}

// Mailer delivers notification email. Delivery is best effort; callers
// log failures and continue.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}
