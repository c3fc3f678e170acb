package model

import (
	"net/mail"
	"strings"
	"time"

	"github.com/stormgate/auth-api/internal/domain/auth"
	apperrors "github.com/stormgate/auth-api/internal/errors"
)

// User is the persisted account record. Local accounts carry a password
// hash; federated accounts carry the provider subject id instead. Blog
// accounts additionally carry profile fields.
type User struct {
	ID                 string        `db:"id" json:"id"`
	Email              string        `db:"email" json:"email"`
	FirstName          string        `db:"first_name" json:"firstName"`
	LastName           string        `db:"last_name" json:"lastName"`
	PasswordHash       *string       `db:"password_hash" json:"-"`
	Role               auth.Role     `db:"role" json:"role"`
	Status             auth.Status   `db:"status" json:"status"`
	Provider           auth.Provider `db:"provider" json:"provider"`
	FederatedSubjectID *string       `db:"federated_subject_id" json:"-"`
	Application        string        `db:"application" json:"application"`

	// Blog profile fields, null for other applications.
	DisplayName *string `db:"display_name" json:"displayName,omitempty"`
	Bio         *string `db:"bio" json:"bio,omitempty"`

	ResetTokenHash      *string    `db:"reset_token_hash" json:"-"`
	ResetTokenExpiresAt *time.Time `db:"reset_token_expires_at" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// FullName joins the name parts, tolerating either being empty.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsFederated reports whether the account authenticates via the
// external identity provider.
func (u *User) IsFederated() bool {
	return u.Provider == auth.ProviderFederated
}

// Principal converts the record into the request-scoped identity shape.
func (u *User) Principal() auth.Principal {
	p := auth.Principal{
		UserID:      u.ID,
		Email:       u.Email,
		Role:        u.Role,
		Application: auth.NormalizeApplication(u.Application),
	}
	if u.FederatedSubjectID != nil {
		p.FederatedSubjectID = *u.FederatedSubjectID
	}
	return p
}

// RegisterRequest is the payload for local account registration.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Application string `json:"application"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`

	// Status is the requested initial status. Only PENDING is honored;
	// anything else creates the account APPROVED.
	Status string `json:"status"`
}

// ProfileUpdate carries the editable profile fields for an existing
// account. Nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
}

// Validate normalizes and checks the update payload.
func (p *ProfileUpdate) Validate() error {
	if p.FirstName != nil {
		trimmed := strings.TrimSpace(*p.FirstName)
		if trimmed == "" {
			return apperrors.ValidationField("firstName", "firstName must not be blank")
		}
		p.FirstName = &trimmed
	}
	if p.LastName != nil {
		trimmed := strings.TrimSpace(*p.LastName)
		p.LastName = &trimmed
	}
	if p.FirstName == nil && p.LastName == nil && p.DisplayName == nil && p.Bio == nil {
		return apperrors.Validation("no profile fields to update")
	}
	return nil
}

const minPasswordLength = 6

// Validate normalizes and checks the registration payload.
func (r *RegisterRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	if r.Email == "" {
		return apperrors.ValidationField("email", "email is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return apperrors.ValidationField("email", "email is not a valid address")
	}
	if len(r.Password) < minPasswordLength {
		return apperrors.ValidationField("password", "password must be at least 6 characters")
	}
	if r.FirstName == "" {
		return apperrors.ValidationField("firstName", "firstName is required")
	}
	return nil
}
