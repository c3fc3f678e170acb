package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormgate/auth-api/config"
	"github.com/stormgate/auth-api/internal/domain/auth"
)

func testConfig() config.TokenConfig {
	return config.TokenConfig{
		AccessSecret:   "access-secret",
		RefreshSecret:  "refresh-secret",
		ApprovalSecret: "approval-secret",
		AccessTTL:      15 * time.Minute,
		RefreshTTL:     168 * time.Hour,
		ApprovalTTL:    24 * time.Hour,
		ResetTTL:       20 * time.Minute,
	}
}

func testPrincipal() auth.Principal {
	return auth.Principal{
		UserID:      "u-1",
		Email:       "a@b.com",
		Role:        auth.RoleBasic,
		Application: auth.ApplicationDefault,
	}
}

func TestAccessRoundTrip(t *testing.T) {
	svc := NewService(testConfig())

	token, err := svc.IssueAccess(testPrincipal())
	require.NoError(t, err)

	claims, err := svc.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "a@b.com", claims.Email)
	assert.Equal(t, auth.RoleBasic, claims.Role)
	assert.Equal(t, PurposeAccess, claims.Purpose)
}

func TestAccessExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(testConfig()).WithClock(func() time.Time { return now })

	token, err := svc.IssueAccess(testPrincipal())
	require.NoError(t, err)

	now = now.Add(16 * time.Minute)
	_, err = svc.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestPurposeSeparation(t *testing.T) {
	svc := NewService(testConfig())

	refresh, err := svc.IssueRefresh(testPrincipal())
	require.NoError(t, err)

	// A refresh token must not verify as an access token even if the
	// secrets happened to match.
	_, err = svc.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSecretSeparation(t *testing.T) {
	cfg := testConfig()
	svc := NewService(cfg)

	token, err := svc.IssueAccess(testPrincipal())
	require.NoError(t, err)

	other := cfg
	other.AccessSecret = "different"
	_, err = NewService(other).VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestApprovalRoundTrip(t *testing.T) {
	svc := NewService(testConfig())

	token, err := svc.IssueApproval("pending@b.com")
	require.NoError(t, err)

	email, err := svc.VerifyApproval(token)
	require.NoError(t, err)
	assert.Equal(t, "pending@b.com", email)
}

func TestResetRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(testConfig()).WithClock(func() time.Time { return now })

	token, err := svc.IssueReset("u-2")
	require.NoError(t, err)

	id, err := svc.VerifyReset(token)
	require.NoError(t, err)
	assert.Equal(t, "u-2", id)

	now = now.Add(21 * time.Minute)
	_, err = svc.VerifyReset(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestGarbageToken(t *testing.T) {
	svc := NewService(testConfig())
	_, err := svc.VerifyAccess("not.a.jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
