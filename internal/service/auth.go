// Package service contains the application services that sit between
// the HTTP layer and the adapters.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/stormgate/auth-api/internal/domain/auth"
	"github.com/stormgate/auth-api/internal/domain/model"
	apperrors "github.com/stormgate/auth-api/internal/errors"
	"github.com/stormgate/auth-api/internal/ports"
	"github.com/stormgate/auth-api/internal/tokens"
)

// LoginResult carries the outcome of a successful credential exchange.
// LimitedAccess marks logins by PENDING accounts; the caller surfaces
// the flag and the UI restricts functionality accordingly.
type LoginResult struct {
	User          *model.User
	AccessToken   string
	RefreshToken  string
	ReturnTo      string
	LimitedAccess bool
}

// AuthService drives the federated login flow and session token
// lifecycle.
type AuthService struct {
	provider ports.IdentityProvider
	flows    ports.FlowStore
	users    ports.UserRepository
	refresh  ports.RefreshTokenStore
	tokens   *tokens.Service
	approval *ApprovalService
	logger   *slog.Logger
}

// NewAuthService wires the federated auth service.
func NewAuthService(
	provider ports.IdentityProvider,
	flows ports.FlowStore,
	users ports.UserRepository,
	refresh ports.RefreshTokenStore,
	tokenSvc *tokens.Service,
	approval *ApprovalService,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		provider: provider,
		flows:    flows,
		users:    users,
		refresh:  refresh,
		tokens:   tokenSvc,
		approval: approval,
		logger:   logger.With("component", "auth_service"),
	}
}

// BeginLogin starts a federated login for the given application and
// returns the provider authorization URL for the browser redirect.
func (s *AuthService) BeginLogin(ctx context.Context, application auth.Application, returnTo string) (string, error) {
	flow, authURL, err := s.provider.Begin(ctx, application, returnTo)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeUpstream, "begin login flow")
	}
	if err := s.flows.Create(ctx, flow); err != nil {
		return "", err
	}
	return authURL, nil
}

// CompleteLogin consumes the callback state, exchanges the code and
// resolves the federated identity to a local account. DENIED accounts
// are rejected; PENDING accounts log in with limited access.
func (s *AuthService) CompleteLogin(ctx context.Context, state, code string) (*LoginResult, error) {
	// Expired flows are evicted opportunistically on each callback.
	if err := s.flows.SweepExpired(ctx); err != nil {
		s.logger.WarnContext(ctx, "flow sweep failed", "err", err)
	}

	// An unknown, replayed or expired state is indistinguishable from a
	// forged request.
	flow, err := s.flows.Consume(ctx, state)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Validation("invalid authentication request")
		}
		return nil, err
	}
	if flow.Expired(time.Now()) {
		return nil, apperrors.Validation("invalid authentication request")
	}

	identity, err := s.provider.Exchange(ctx, code, flow)
	if err != nil {
		s.logger.ErrorContext(ctx, "authorization code exchange failed", "err", err)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUpstream, "authentication failed")
	}

	user, err := s.resolveAccount(ctx, identity, flow.Application)
	if err != nil {
		return nil, err
	}
	if user.Status == auth.StatusDenied {
		return nil, apperrors.Forbidden("account registration has been denied")
	}

	result := &LoginResult{
		User:          user,
		ReturnTo:      flow.ReturnTo,
		LimitedAccess: user.Status == auth.StatusPending,
	}
	if err := s.issueTokens(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// resolveAccount maps a federated identity onto a local account:
// matched by subject id first, then by email (linking the subject on
// first federated login), otherwise a new account is created with the
// application's initial status.
func (s *AuthService) resolveAccount(ctx context.Context, identity auth.Identity, application auth.Application) (*model.User, error) {
	user, err := s.users.GetByFederatedID(ctx, identity.SubjectID)
	if err == nil {
		return user, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	email := identity.EmailOrUsername()
	if email == "" {
		return nil, apperrors.Unauthorized("federated identity has no email claim")
	}

	user, err = s.users.GetByEmail(ctx, email)
	if err == nil {
		if user.FederatedSubjectID == nil {
			if linkErr := s.users.SetFederatedID(ctx, user.ID, identity.SubjectID); linkErr != nil {
				return nil, linkErr
			}
			sub := identity.SubjectID
			user.FederatedSubjectID = &sub
		}
		return user, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	first, last := splitName(identity.Name)
	sub := identity.SubjectID
	status := auth.InitialFederatedStatus(application)
	created, err := s.users.Create(ctx, &model.User{
		Email:              email,
		FirstName:          first,
		LastName:           last,
		Role:               auth.RoleBasic,
		Status:             status,
		Provider:           auth.ProviderFederated,
		FederatedSubjectID: &sub,
		Application:        string(application),
	})
	if err != nil {
		// Lost a race with a concurrent first login for the same account.
		if apperrors.IsConflict(err) {
			return s.users.GetByEmail(ctx, email)
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "created account for federated identity",
		"user_id", created.ID, "email", created.Email, "application", application, "status", status)
	if status == auth.StatusPending {
		s.approval.RequestApproval(ctx, created)
	}
	return created, nil
}

// Refresh rotates the refresh token and issues a fresh access token.
// The presented token must match the single stored token for the user.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}

	stored, err := s.refresh.Get(ctx, claims.Subject)
	if err != nil || stored != refreshToken {
		return nil, apperrors.Unauthorized("refresh token revoked")
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, apperrors.Unauthorized("account no longer exists")
	}
	if user.Status == auth.StatusDenied {
		return nil, apperrors.Forbidden("account registration has been denied")
	}

	result := &LoginResult{User: user, LimitedAccess: user.Status == auth.StatusPending}
	if err := s.issueTokens(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Logout revokes the user's refresh token.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.refresh.Delete(ctx, userID)
}

// CurrentUser returns the account for an authenticated principal.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// IssueFor mints and stores a token pair for an account. Shared by the
// federated callback, registration and the local credential login.
func (s *AuthService) IssueFor(ctx context.Context, user *model.User) (*LoginResult, error) {
	result := &LoginResult{User: user, LimitedAccess: user.Status == auth.StatusPending}
	if err := s.issueTokens(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *AuthService) issueTokens(ctx context.Context, result *LoginResult) error {
	principal := result.User.Principal()

	access, err := s.tokens.IssueAccess(principal)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "issue access token")
	}
	refreshToken, err := s.tokens.IssueRefresh(principal)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "issue refresh token")
	}
	if err := s.refresh.Set(ctx, principal.UserID, refreshToken, s.tokens.RefreshTTL()); err != nil {
		return err
	}

	result.AccessToken = access
	result.RefreshToken = refreshToken
	return nil
}

func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	if i := strings.LastIndex(full, " "); i > 0 {
		return strings.TrimSpace(full[:i]), strings.TrimSpace(full[i+1:])
	}
	return full, ""
}
