package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasRole(t *testing.T) {
	assert.True(t, HasRole(RoleAdmin, RoleAdmin, RoleSuperAdmin))
	assert.True(t, HasRole(RoleSuperAdmin, RoleAdmin, RoleSuperAdmin))
	assert.False(t, HasRole(RoleBasic, RoleAdmin, RoleSuperAdmin))
	assert.False(t, HasRole(Role("owner"), RoleAdmin))
	assert.False(t, HasRole(RoleAdmin))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusApproved))
	assert.True(t, CanTransition(StatusPending, StatusDenied))
	assert.True(t, CanTransition(StatusApproved, StatusApproved))
	assert.False(t, CanTransition(StatusApproved, StatusDenied))
	assert.False(t, CanTransition(StatusDenied, StatusApproved))
	assert.False(t, CanTransition(StatusApproved, StatusPending))
}

func TestNormalizeApplication(t *testing.T) {
	assert.Equal(t, ApplicationBlog, NormalizeApplication("blog"))
	assert.Equal(t, ApplicationDefault, NormalizeApplication(""))
	assert.Equal(t, ApplicationDefault, NormalizeApplication("cms"))
}

func TestIdentityEmailOrUsername(t *testing.T) {
	assert.Equal(t, "a@b.com", Identity{Email: "a@b.com", PreferredUsername: "u@b.com"}.EmailOrUsername())
	assert.Equal(t, "u@b.com", Identity{PreferredUsername: "u@b.com"}.EmailOrUsername())
}

func TestPrincipalIsAdmin(t *testing.T) {
	assert.True(t, Principal{Role: RoleSuperAdmin}.IsAdmin())
	assert.False(t, Principal{Role: RoleBasic}.IsAdmin())
}
