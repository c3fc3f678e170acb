package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormgate/auth-api/internal/domain/auth"
	apperrors "github.com/stormgate/auth-api/internal/errors"
)

func TestRegisterRequestValidate(t *testing.T) {
	valid := RegisterRequest{
		Email:     "  User@Example.COM ",
		Password:  "longenough",
		FirstName: " Ada ",
		LastName:  "Lovelace",
	}
	require.NoError(t, valid.Validate())
	assert.Equal(t, "user@example.com", valid.Email)
	assert.Equal(t, "Ada", valid.FirstName)

	cases := []struct {
		name  string
		req   RegisterRequest
		field string
	}{
		{"missing email", RegisterRequest{Password: "longenough", FirstName: "A"}, "email"},
		{"bad email", RegisterRequest{Email: "not-an-address", Password: "longenough", FirstName: "A"}, "email"},
		{"short password", RegisterRequest{Email: "a@b.com", Password: "short", FirstName: "A"}, "password"},
		{"missing first name", RegisterRequest{Email: "a@b.com", Password: "longenough"}, "firstName"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tc.field, apperrors.GetField(err))
		})
	}
}

func TestUserPrincipal(t *testing.T) {
	sub := "sub-123"
	u := User{
		ID:                 "u-1",
		Email:              "a@b.com",
		Role:               auth.RoleAdmin,
		Application:        "blog",
		FederatedSubjectID: &sub,
	}
	p := u.Principal()
	assert.Equal(t, "u-1", p.UserID)
	assert.Equal(t, auth.ApplicationBlog, p.Application)
	assert.Equal(t, "sub-123", p.FederatedSubjectID)
	assert.True(t, p.IsAdmin())
}

func TestUserFullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&User{FirstName: "Ada", LastName: "Lovelace"}).FullName())
	assert.Equal(t, "Ada", (&User{FirstName: "Ada"}).FullName())
}
