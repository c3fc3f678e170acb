package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stormgate/auth-api/internal/domain/auth"
	"github.com/stormgate/auth-api/internal/domain/model"
	apperrors "github.com/stormgate/auth-api/internal/errors"
)

func registerPending(t *testing.T, f *fixture, email string) *model.User {
	t.Helper()
	result, err := f.user.Register(context.Background(), &model.RegisterRequest{
		Email:     email,
		Password:  "correct-horse",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Status:    "PENDING",
	})
	require.NoError(t, err)
	require.True(t, result.RequiresApproval)
	return result.User
}

func TestRegisterPendingEntersApprovalWorkflow(t *testing.T) {
	f := newFixture(t)
	user := registerPending(t, f, "ada@b.com")

	assert.Equal(t, auth.StatusPending, user.Status)
	assert.Equal(t, auth.ProviderLocal, user.Provider)
	assert.Equal(t, auth.RoleBasic, user.Role)
	require.NotNil(t, user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte("correct-horse")))

	// Admin approval was requested and the applicant told to wait.
	require.Equal(t, 2, f.mailer.Count())
	assert.Equal(t, "approval-request", f.mailer.Sent[0].Template)
	assert.Equal(t, "registration-pending", f.mailer.Sent[1].Template)
	assert.Equal(t, "ada@b.com", f.mailer.Sent[1].To)
}

func TestRegisterDefaultIsApprovedAndLoggedIn(t *testing.T) {
	f := newFixture(t)
	result, err := f.user.Register(context.Background(), &model.RegisterRequest{
		Email:     "ada@b.com",
		Password:  "correct-horse",
		FirstName: "Ada",
	})
	require.NoError(t, err)

	assert.Equal(t, auth.StatusApproved, result.User.Status)
	assert.False(t, result.RequiresApproval)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, 0, f.mailer.Count())

	claims, err := f.tokens.VerifyAccess(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.Subject)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	registerPending(t, f, "ada@b.com")

	_, err := f.user.Register(context.Background(), &model.RegisterRequest{
		Email:     "ada@b.com",
		Password:  "another-pass",
		FirstName: "Ada",
	})
	assert.True(t, apperrors.IsConflict(err))
}

func TestRegisterBlogProfile(t *testing.T) {
	f := newFixture(t)
	result, err := f.user.Register(context.Background(), &model.RegisterRequest{
		Email:       "blogger@b.com",
		Password:    "correct-horse",
		FirstName:   "Ada",
		Application: "blog",
		DisplayName: "ada.writes",
		Bio:         "Notes on analytical engines.",
	})
	require.NoError(t, err)
	user := result.User
	assert.Equal(t, string(auth.ApplicationBlog), user.Application)
	require.NotNil(t, user.DisplayName)
	assert.Equal(t, "ada.writes", *user.DisplayName)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := registerPending(t, f, "ada@b.com")

	name := "Augusta"
	bio := "Notes on analytical engines."
	updated, err := f.user.UpdateProfile(ctx, user.ID, model.ProfileUpdate{
		FirstName: &name,
		Bio:       &bio,
	})
	require.NoError(t, err)
	assert.Equal(t, "Augusta", updated.FirstName)
	assert.Equal(t, "Lovelace", updated.LastName)
	require.NotNil(t, updated.Bio)
	assert.Equal(t, bio, *updated.Bio)
}

func TestUpdateProfileValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := registerPending(t, f, "ada@b.com")

	blank := "  "
	_, err := f.user.UpdateProfile(ctx, user.ID, model.ProfileUpdate{FirstName: &blank})
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.user.UpdateProfile(ctx, user.ID, model.ProfileUpdate{})
	assert.True(t, apperrors.IsValidation(err))

	name := "Augusta"
	_, err = f.user.UpdateProfile(ctx, "no-such-user", model.ProfileUpdate{FirstName: &name})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestLoginLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := registerPending(t, f, "ada@b.com")

	// Pending accounts log in with limited access.
	limited, err := f.user.Login(ctx, "ada@b.com", "correct-horse")
	require.NoError(t, err)
	assert.True(t, limited.LimitedAccess)
	assert.NotEmpty(t, limited.AccessToken)

	_, err = f.approval.ApproveByID(ctx, user.ID)
	require.NoError(t, err)

	result, err := f.user.Login(ctx, "ada@b.com", "correct-horse")
	require.NoError(t, err)
	assert.False(t, result.LimitedAccess)
	assert.NotEmpty(t, result.AccessToken)
}

func TestLoginUniformFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := registerPending(t, f, "ada@b.com")
	_, err := f.approval.ApproveByID(ctx, user.ID)
	require.NoError(t, err)

	// Unknown address and wrong password are indistinguishable.
	_, errUnknown := f.user.Login(ctx, "nobody@b.com", "whatever")
	_, errWrong := f.user.Login(ctx, "ada@b.com", "wrong-pass")
	require.True(t, apperrors.IsUnauthorized(errUnknown))
	require.True(t, apperrors.IsUnauthorized(errWrong))
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestLoginDeniedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := registerPending(t, f, "ada@b.com")
	_, err := f.approval.DenyByID(ctx, user.ID)
	require.NoError(t, err)

	_, err = f.user.Login(ctx, "ada@b.com", "correct-horse")
	assert.True(t, apperrors.IsForbidden(err))

	// Denial is checked before the credential, so a wrong password does
	// not turn into an unauthorized error.
	_, err = f.user.Login(ctx, "ada@b.com", "wrong-pass")
	assert.True(t, apperrors.IsForbidden(err))
}

func TestLoginFederatedAccountHasNoLocalCredential(t *testing.T) {
	f := newFixture(t)
	sub := "sub-1"
	f.seedUser(t, model.User{
		Email:              "fed@b.com",
		Status:             auth.StatusApproved,
		Provider:           auth.ProviderFederated,
		FederatedSubjectID: &sub,
	})

	_, err := f.user.Login(context.Background(), "fed@b.com", "anything")
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestCheckStatus(t *testing.T) {
	f := newFixture(t)
	registerPending(t, f, "ada@b.com")

	status, err := f.user.CheckStatus(context.Background(), "Ada@B.com")
	require.NoError(t, err)
	assert.Equal(t, auth.StatusPending, status)

	_, err = f.user.CheckStatus(context.Background(), "nobody@b.com")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestForgotPasswordFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := registerPending(t, f, "ada@b.com")
	_, err := f.approval.ApproveByID(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, f.user.ForgotPassword(ctx, "ada@b.com"))

	msg := f.mailer.Last()
	assert.Equal(t, "password-reset", msg.Template)
	resetURL := msg.Vars["resetUrl"]
	require.NotEmpty(t, resetURL)
	token := resetURL[len("http://localhost:3001/reset-password/"):]

	// The link can be checked without consuming it.
	checked, err := f.user.VerifyResetToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, checked.ID)

	require.NoError(t, f.user.ResetPassword(ctx, token, "new-password-1"))

	// Old password is gone, new one works.
	_, err = f.user.Login(ctx, "ada@b.com", "correct-horse")
	assert.True(t, apperrors.IsUnauthorized(err))
	_, err = f.user.Login(ctx, "ada@b.com", "new-password-1")
	assert.NoError(t, err)

	// The stored token was cleared, so the link is dead.
	err = f.user.ResetPassword(ctx, token, "another-password")
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestForgotPasswordUnknownAddressIsSilent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.user.ForgotPassword(context.Background(), "nobody@b.com"))
	assert.Equal(t, 0, f.mailer.Count())
}

func TestResetPasswordRevokesRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := registerPending(t, f, "ada@b.com")
	_, err := f.approval.ApproveByID(ctx, user.ID)
	require.NoError(t, err)

	login, err := f.user.Login(ctx, "ada@b.com", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, f.user.ForgotPassword(ctx, "ada@b.com"))
	resetURL := f.mailer.Last().Vars["resetUrl"]
	token := resetURL[len("http://localhost:3001/reset-password/"):]

	require.NoError(t, f.user.ResetPassword(ctx, token, "new-password-1"))

	_, err = f.auth.Refresh(ctx, login.RefreshToken)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestResetPasswordRejectsSignedTokenWithoutStoredHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := registerPending(t, f, "ada@b.com")

	// Signature alone is not enough; the stored half must match too.
	token, err := f.tokens.IssueReset(user.ID)
	require.NoError(t, err)
	err = f.user.ResetPassword(ctx, token, "new-password-1")
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestResetPasswordShortPassword(t *testing.T) {
	f := newFixture(t)
	err := f.user.ResetPassword(context.Background(), "irrelevant", "tiny")
	assert.True(t, apperrors.IsValidation(err))
}
