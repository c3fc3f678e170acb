package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/stormgate/auth-api/internal/domain/auth"
	"github.com/stormgate/auth-api/internal/domain/model"
	apperrors "github.com/stormgate/auth-api/internal/errors"
	"github.com/stormgate/auth-api/internal/ports"
	"github.com/stormgate/auth-api/internal/tokens"
)

// ApprovalService drives the PENDING account approval workflow: signed
// approval links emailed to the admin, manual admin decisions, and the
// pending queue listing.
type ApprovalService struct {
	users      ports.UserRepository
	tokens     *tokens.Service
	mailer     ports.Mailer
	adminEmail string
	baseURL    string
	logger     *slog.Logger
}

// NewApprovalService wires the approval workflow.
func NewApprovalService(
	users ports.UserRepository,
	tokenSvc *tokens.Service,
	mailer ports.Mailer,
	adminEmail, baseURL string,
	logger *slog.Logger,
) *ApprovalService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApprovalService{
		users:      users,
		tokens:     tokenSvc,
		mailer:     mailer,
		adminEmail: adminEmail,
		baseURL:    baseURL,
		logger:     logger.With("component", "approval_service"),
	}
}

// RequestApproval notifies the admin that a new account awaits review.
// Delivery is best effort; a mail failure never fails the signup.
func (s *ApprovalService) RequestApproval(ctx context.Context, user *model.User) {
	token, err := s.tokens.IssueApproval(user.Email)
	if err != nil {
		s.logger.ErrorContext(ctx, "issue approval token failed", "user_id", user.ID, "err", err)
		return
	}
	msg := ports.Email{
		To:       s.adminEmail,
		Subject:  fmt.Sprintf("New account pending approval: %s", user.Email),
		Template: "approval-request",
		Vars: map[string]string{
			"name":       user.FullName(),
			"email":      user.Email,
			"approveUrl": fmt.Sprintf("%s/auth/approve?token=%s", s.baseURL, token),
			"denyUrl":    fmt.Sprintf("%s/auth/deny?token=%s", s.baseURL, token),
		},
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "approval request email failed", "user_id", user.ID, "err", err)
	}
}

// ApproveByToken approves the account named by a signed approval link.
// Token validity is signature and expiry only.
func (s *ApprovalService) ApproveByToken(ctx context.Context, token string) (*model.User, error) {
	return s.decideByToken(ctx, token, auth.StatusApproved)
}

// DenyByToken denies the account named by a signed approval link.
func (s *ApprovalService) DenyByToken(ctx context.Context, token string) (*model.User, error) {
	return s.decideByToken(ctx, token, auth.StatusDenied)
}

func (s *ApprovalService) decideByToken(ctx context.Context, token string, decision auth.Status) (*model.User, error) {
	email, err := s.tokens.VerifyApproval(token)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired approval token")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.decide(ctx, user.ID, decision)
}

// ApproveByID approves an account directly, for admin console use.
func (s *ApprovalService) ApproveByID(ctx context.Context, userID string) (*model.User, error) {
	return s.decide(ctx, userID, auth.StatusApproved)
}

// DenyByID denies an account directly, for admin console use.
func (s *ApprovalService) DenyByID(ctx context.Context, userID string) (*model.User, error) {
	return s.decide(ctx, userID, auth.StatusDenied)
}

func (s *ApprovalService) decide(ctx context.Context, userID string, decision auth.Status) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !auth.CanTransition(user.Status, decision) {
		return nil, apperrors.Conflict(fmt.Sprintf("account already %s", user.Status))
	}
	if user.Status == decision {
		// Idempotent re-click of the same approval link.
		return user, nil
	}

	updated, err := s.users.SetStatus(ctx, userID, decision)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "account decision recorded",
		"user_id", updated.ID, "email", updated.Email, "status", updated.Status)
	s.notifyResult(ctx, updated)
	return updated, nil
}

func (s *ApprovalService) notifyResult(ctx context.Context, user *model.User) {
	subject := "Your account has been approved"
	if user.Status == auth.StatusDenied {
		subject = "Your account request was declined"
	}
	msg := ports.Email{
		To:       user.Email,
		Subject:  subject,
		Template: "approval-result",
		Vars: map[string]string{
			"name":   user.FullName(),
			"status": string(user.Status),
		},
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "approval result email failed", "user_id", user.ID, "err", err)
	}
}

// PendingUsers lists accounts awaiting review, oldest first. When a
// JMESPath filter expression is supplied it is evaluated against the
// JSON form of the page and its result returned verbatim.
func (s *ApprovalService) PendingUsers(ctx context.Context, limit, offset int, filter string) (any, error) {
	users, err := s.users.ListByStatus(ctx, auth.StatusPending, limit, offset)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	if filter == "" {
		return users, nil
	}

	if _, err := jmespath.Compile(filter); err != nil {
		return nil, apperrors.ValidationField("filter", "invalid filter expression")
	}

	// Round-trip through JSON so the expression sees the API field names.
	raw, err := json.Marshal(users)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode pending users")
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode pending users")
	}

	result, err := jmespath.Search(filter, doc)
	if err != nil {
		return nil, apperrors.ValidationField("filter", "filter evaluation failed")
	}
	return result, nil
}
