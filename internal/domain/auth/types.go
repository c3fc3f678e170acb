package auth

// Package auth contains domain-level types for authentication and the
// account approval lifecycle. It is pure and free of framework/adapter concerns.

// Role represents an application's authorization role.
// Keep string form for easy persistence and token claims.
type Role string

const (
	RoleBasic      Role = "basic"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superAdmin"
)

// ValidRole reports whether r is a member of the closed role set.
func ValidRole(r Role) bool {
	switch r {
	case RoleBasic, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// HasRole reports whether role is one of the allowed roles.
// Unknown role strings never match.
func HasRole(role Role, allowed ...Role) bool {
	if !ValidRole(role) {
		return false
	}
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// Status is the approval state of an account.
// PENDING may move to APPROVED or DENIED; APPROVED and DENIED are terminal.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusDenied   Status = "DENIED"
)

// CanTransition reports whether a status change is allowed by the
// approval workflow. Re-applying the current terminal status is allowed
// so approval links stay idempotent.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	return from == StatusPending && (to == StatusApproved || to == StatusDenied)
}

// Provider identifies how an account authenticates.
type Provider string

const (
	ProviderLocal     Provider = "local"
	ProviderFederated Provider = "azure-ad"
)

// Application is the logical namespace an account belongs to.
// The set of known applications is closed; anything else uses the base
// record shape.
type Application string

const (
	ApplicationDefault Application = "default"
	ApplicationBlog    Application = "blog"
)

// NormalizeApplication maps empty/unknown application strings to the default.
func NormalizeApplication(app string) Application {
	switch Application(app) {
	case ApplicationBlog:
		return ApplicationBlog
	default:
		return ApplicationDefault
	}
}

// InitialFederatedStatus is the status given to accounts created on
// first federated login. All current applications auto-approve
// federated identities; registration is the only path into PENDING.
func InitialFederatedStatus(Application) Status {
	return StatusApproved
}

// Identity represents the authenticated principal returned by the
// identity provider. Adapters map provider-specific claims into this shape.
type Identity struct {
	SubjectID         string // stable provider identifier (sub/oid)
	Email             string
	PreferredUsername string
	Name              string
}

// EmailOrUsername returns the best available address claim.
func (i Identity) EmailOrUsername() string {
	if i.Email != "" {
		return i.Email
	}
	return i.PreferredUsername
}

// Principal is the normalized identity attached to a request after
// token verification, regardless of which verification path succeeded.
type Principal struct {
	UserID             string      `json:"id"`
	Email              string      `json:"email"`
	Role               Role        `json:"role"`
	Application        Application `json:"application"`
	FederatedSubjectID string      `json:"federatedSubjectId,omitempty"`
}

// IsAdmin reports whether the principal holds an administrative role.
func (p Principal) IsAdmin() bool {
	return HasRole(p.Role, RoleAdmin, RoleSuperAdmin)
}
