package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/stormgate/auth-api/internal/domain/auth"
	"github.com/stormgate/auth-api/internal/domain/model"
	apperrors "github.com/stormgate/auth-api/internal/errors"
	"github.com/stormgate/auth-api/internal/ports"
	"github.com/stormgate/auth-api/internal/tokens"
)

// UserService handles local credential accounts: registration, login,
// status checks and the password reset flow.
type UserService struct {
	users      ports.UserRepository
	tokens     *tokens.Service
	auth       *AuthService
	approval   *ApprovalService
	mailer     ports.Mailer
	baseURL    string
	bcryptCost int
	logger     *slog.Logger
	now        func() time.Time
}

// NewUserService wires the local credential service.
func NewUserService(
	users ports.UserRepository,
	tokenSvc *tokens.Service,
	authSvc *AuthService,
	approval *ApprovalService,
	mailer ports.Mailer,
	baseURL string,
	logger *slog.Logger,
) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:      users,
		tokens:     tokenSvc,
		auth:       authSvc,
		approval:   approval,
		mailer:     mailer,
		baseURL:    baseURL,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger.With("component", "user_service"),
		now:        time.Now,
	}
}

// RegisterResult carries the registration outcome. Tokens are present
// only when the account was created APPROVED and logged in immediately.
type RegisterResult struct {
	User             *model.User
	AccessToken      string
	RefreshToken     string
	RequiresApproval bool
}

// Register creates a local account. A requested PENDING status enters
// the approval workflow with both notifications fired best effort; any
// other request creates the account APPROVED and issues tokens
// immediately.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*RegisterResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "hash password")
	}
	hashed := string(hash)

	status := auth.StatusApproved
	if auth.Status(req.Status) == auth.StatusPending {
		status = auth.StatusPending
	}

	user := &model.User{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: &hashed,
		Role:         auth.RoleBasic,
		Status:       status,
		Provider:     auth.ProviderLocal,
		Application:  string(auth.NormalizeApplication(req.Application)),
	}
	if auth.NormalizeApplication(req.Application) == auth.ApplicationBlog {
		if req.DisplayName != "" {
			user.DisplayName = &req.DisplayName
		}
		if req.Bio != "" {
			user.Bio = &req.Bio
		}
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "registered account",
		"user_id", created.ID, "email", created.Email, "status", created.Status)

	if created.Status == auth.StatusPending {
		s.approval.RequestApproval(ctx, created)
		s.notifyRegistrationPending(ctx, created)
		return &RegisterResult{User: created, RequiresApproval: true}, nil
	}

	login, err := s.auth.IssueFor(ctx, created)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{
		User:         created,
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	}, nil
}

func (s *UserService) notifyRegistrationPending(ctx context.Context, user *model.User) {
	msg := ports.Email{
		To:       user.Email,
		Subject:  "Registration received, pending approval",
		Template: "registration-pending",
		Vars: map[string]string{
			"name": user.FullName(),
		},
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "pending registration email failed", "user_id", user.ID, "err", err)
	}
}

// Login verifies local credentials and issues a token pair. DENIED
// accounts are rejected before the password is checked; PENDING
// accounts log in with limited access. All credential failures map to
// the same unauthorized error.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, err
	}
	if user.Status == auth.StatusDenied {
		return nil, apperrors.Forbidden("account registration has been denied")
	}
	if user.PasswordHash == nil {
		// Federated accounts have no local credential.
		return nil, apperrors.Unauthorized("invalid email or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) != nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	return s.auth.IssueFor(ctx, user)
}

// UpdateProfile applies the non-nil profile fields to an account.
func (s *UserService) UpdateProfile(ctx context.Context, id string, update model.ProfileUpdate) (*model.User, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	updated, err := s.users.UpdateProfile(ctx, id, update)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "profile updated", "user_id", updated.ID)
	return updated, nil
}

// CheckStatus returns the approval state for an email address.
func (s *UserService) CheckStatus(ctx context.Context, email string) (auth.Status, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", err
	}
	return user.Status, nil
}

// ForgotPassword starts the reset flow. The response never reveals
// whether the address is registered.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.InfoContext(ctx, "reset requested for unknown address")
			return nil
		}
		return err
	}
	if user.PasswordHash == nil {
		// Federated accounts reset their password with the provider.
		return nil
	}

	token, err := s.tokens.IssueReset(user.ID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "issue reset token")
	}
	// Stored expiry mirrors the signed token lifetime so both checks
	// expire together.
	expiresAt := s.now().Add(s.tokens.ResetTTL())
	if err := s.users.SetResetToken(ctx, user.ID, hashResetToken(token), expiresAt); err != nil {
		return err
	}

	msg := ports.Email{
		To:       user.Email,
		Subject:  "Password reset requested",
		Template: "password-reset",
		Vars: map[string]string{
			"name":     user.FullName(),
			"resetUrl": fmt.Sprintf("%s/reset-password/%s", s.baseURL, token),
		},
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "reset email failed", "user_id", user.ID, "err", err)
	}
	return nil
}

// VerifyResetToken checks a reset link without consuming it, so the UI
// can show the form only for live links.
func (s *UserService) VerifyResetToken(ctx context.Context, token string) (*model.User, error) {
	return s.checkResetToken(ctx, token)
}

// ResetPassword sets a new password for a live reset link, clears the
// stored token and revokes any active refresh token.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 6 {
		return apperrors.ValidationField("password", "password must be at least 6 characters")
	}

	user, err := s.checkResetToken(ctx, token)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "hash password")
	}
	if err := s.users.SetPassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	if err := s.users.ClearResetToken(ctx, user.ID); err != nil {
		return err
	}
	if err := s.auth.Logout(ctx, user.ID); err != nil {
		s.logger.WarnContext(ctx, "refresh revocation after reset failed", "user_id", user.ID, "err", err)
	}
	s.logger.InfoContext(ctx, "password reset completed", "user_id", user.ID)
	return nil
}

// checkResetToken requires both halves to agree: a valid signature on
// the presented token and a matching unexpired stored hash.
func (s *UserService) checkResetToken(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.tokens.VerifyReset(token)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired reset token")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired reset token")
	}
	if user.ResetTokenHash == nil || user.ResetTokenExpiresAt == nil {
		return nil, apperrors.Unauthorized("invalid or expired reset token")
	}
	if *user.ResetTokenHash != hashResetToken(token) {
		return nil, apperrors.Unauthorized("invalid or expired reset token")
	}
	if s.now().After(*user.ResetTokenExpiresAt) {
		return nil, apperrors.Unauthorized("invalid or expired reset token")
	}
	return user, nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
