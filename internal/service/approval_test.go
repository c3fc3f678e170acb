package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stormgate/auth-api/internal/domain/auth"
	"github.com/stormgate/auth-api/internal/domain/model"
	apperrors "github.com/stormgate/auth-api/internal/errors"
	"github.com/stormgate/auth-api/internal/mocks"
)

func TestApproveByToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(t, model.User{Email: "p@b.com", Status: auth.StatusPending})

	token, err := f.tokens.IssueApproval(user.Email)
	require.NoError(t, err)

	updated, err := f.approval.ApproveByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusApproved, updated.Status)

	// The applicant was told the outcome.
	require.Equal(t, 1, f.mailer.Count())
	assert.Equal(t, "p@b.com", f.mailer.Last().To)
	assert.Equal(t, "approval-result", f.mailer.Last().Template)
}

func TestRequestApprovalEmailsDecisionLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(t, model.User{Email: "p@b.com", Status: auth.StatusPending})

	f.approval.RequestApproval(ctx, user)

	require.Equal(t, 1, f.mailer.Count())
	msg := f.mailer.Last()
	assert.Equal(t, "admin@stormgate.com", msg.To)
	assert.Contains(t, msg.Vars["approveUrl"], "/auth/approve?token=")
	assert.Contains(t, msg.Vars["denyUrl"], "/auth/deny?token=")
}

func TestDenyByToken(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, model.User{Email: "p@b.com", Status: auth.StatusPending})

	token, err := f.tokens.IssueApproval(user.Email)
	require.NoError(t, err)

	updated, err := f.approval.DenyByToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusDenied, updated.Status)
}

func TestApprovalTokenIsSignatureAndExpiryOnly(t *testing.T) {
	f := newFixture(t)
	_, err := f.approval.ApproveByToken(context.Background(), "tampered-token")
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestApprovalTokenForUnknownEmail(t *testing.T) {
	f := newFixture(t)

	// A validly signed token whose email has no account left.
	token, err := f.tokens.IssueApproval("gone@b.com")
	require.NoError(t, err)

	_, err = f.approval.ApproveByToken(context.Background(), token)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestApproveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(t, model.User{Email: "p@b.com", Status: auth.StatusPending})

	token, err := f.tokens.IssueApproval(user.Email)
	require.NoError(t, err)

	_, err = f.approval.ApproveByToken(ctx, token)
	require.NoError(t, err)

	// Re-clicking the same link is harmless and sends no second mail.
	sent := f.mailer.Count()
	updated, err := f.approval.ApproveByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusApproved, updated.Status)
	assert.Equal(t, sent, f.mailer.Count())
}

func TestDenyAfterApproveConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(t, model.User{Email: "p@b.com", Status: auth.StatusPending})

	_, err := f.approval.ApproveByID(ctx, user.ID)
	require.NoError(t, err)

	_, err = f.approval.DenyByID(ctx, user.ID)
	assert.True(t, apperrors.IsConflict(err))
}

func TestDecideByIDUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.approval.ApproveByID(context.Background(), "no-such-user")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPendingUsersListsOldestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, model.User{Email: "one@b.com", Status: auth.StatusPending})
	f.seedUser(t, model.User{Email: "two@b.com", Status: auth.StatusPending})
	f.seedUser(t, model.User{Email: "done@b.com", Status: auth.StatusApproved})

	result, err := f.approval.PendingUsers(ctx, 50, 0, "")
	require.NoError(t, err)

	users, ok := result.([]model.User)
	require.True(t, ok)
	require.Len(t, users, 2)
	assert.Equal(t, "one@b.com", users[0].Email)
}

func TestPendingUsersFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, model.User{Email: "one@b.com", FirstName: "One", Status: auth.StatusPending})
	f.seedUser(t, model.User{Email: "two@b.com", FirstName: "Two", Status: auth.StatusPending})

	result, err := f.approval.PendingUsers(ctx, 50, 0, "[?email=='two@b.com'].firstName")
	require.NoError(t, err)
	assert.Equal(t, []any{"Two"}, result)
}

func TestPendingUsersBadFilter(t *testing.T) {
	f := newFixture(t)
	_, err := f.approval.PendingUsers(context.Background(), 50, 0, "[?broken")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "filter", apperrors.GetField(err))
}

func TestMailFailureDoesNotFailDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(t, model.User{Email: "p@b.com", Status: auth.StatusPending})

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mailer := mocks.NewMockMailer(ctrl)
	mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(assert.AnError)

	svc := NewApprovalService(f.users, f.tokens, mailer, "admin@stormgate.com", "http://localhost:3001", slog.Default())
	updated, err := svc.ApproveByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusApproved, updated.Status)
}
