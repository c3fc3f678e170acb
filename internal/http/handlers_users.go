package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/stormgate/auth-api/internal/domain/auth"
	"github.com/stormgate/auth-api/internal/domain/model"
	"github.com/stormgate/auth-api/internal/service"
)

// UserServiceInterface defines the interface for local credential operations.
type UserServiceInterface interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*service.RegisterResult, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	UpdateProfile(ctx context.Context, id string, update model.ProfileUpdate) (*model.User, error)
	CheckStatus(ctx context.Context, email string) (domainauth.Status, error)
	ForgotPassword(ctx context.Context, email string) error
	VerifyResetToken(ctx context.Context, token string) (*model.User, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// UserLister lists accounts for the admin console.
type UserLister interface {
	ListAll(ctx context.Context, limit, offset int) ([]model.User, error)
}

// UserHandlers provides HTTP handlers for local accounts and the
// password reset flow.
type UserHandlers struct {
	Svc     UserServiceInterface
	Users   UserLister
	Cookies CookieWriter
	Logger  *slog.Logger
}

func (h *UserHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Register creates a local account. Accounts registered PENDING wait
// for approval; any other registration is approved immediately and
// logged in.
// POST /register.
func (h *UserHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.Svc.Register(r.Context(), &req)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	if result.RequiresApproval {
		WriteJSON(w, http.StatusCreated, map[string]any{
			"user":             result.User,
			"status":           result.User.Status,
			"requiresApproval": true,
			"message":          "account created and awaiting approval",
		})
		return
	}

	h.Cookies.SetAuthCookies(w, r, result.AccessToken, result.RefreshToken)
	WriteJSON(w, http.StatusCreated, map[string]any{
		"accesstoken": result.AccessToken,
		"user":        result.User,
	})
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// Login verifies local credentials and sets the access cookie. The
// refresh cookie is only written when the client asks to stay signed
// in.
// POST /login.
func (h *UserHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.Svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	h.Cookies.SetAccessCookie(w, r, result.AccessToken)
	if req.RememberMe {
		h.Cookies.SetRefreshCookie(w, r, result.RefreshToken)
	}
	WriteJSON(w, http.StatusOK, loginView(result))
}

// UpdateProfile edits an account's profile fields. Accounts edit
// themselves; admins may edit anyone.
// PUT /edit/{id}.
func (h *UserHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	id := r.PathValue("id")
	if id != principal.UserID && !principal.IsAdmin() {
		WriteError(w, ErrorParams{
			Code:    http.StatusForbidden,
			ErrCode: "forbidden",
			Err:     errors.New("cannot edit another account"),
		})
		return
	}

	var update model.ProfileUpdate
	if !DecodeJSON(w, r, &update) {
		return
	}

	user, err := h.Svc.UpdateProfile(r.Context(), id, update)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"user": user})
}

type statusRequest struct {
	Email string `json:"email"`
}

// Status returns the approval state for an email address.
// POST /check-status.
func (h *UserHandlers) Status(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_email",
			Err:     errors.New("email is required"),
		})
		return
	}

	status, err := h.Svc.CheckStatus(r.Context(), req.Email)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"status": status})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword starts the reset flow. Always responds 200 so the
// endpoint cannot be used to probe for registered addresses.
// POST /forgot-password.
func (h *UserHandlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_email",
			Err:     errors.New("email is required"),
		})
		return
	}

	if err := h.Svc.ForgotPassword(r.Context(), req.Email); err != nil {
		h.logger().ErrorContext(r.Context(), "forgot password failed", "err", err)
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"message": "if the address is registered, a reset link has been sent",
	})
}

// VerifyResetToken reports whether a reset link is still live.
// GET /reset-password/{token}.
func (h *UserHandlers) VerifyResetToken(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if _, err := h.Svc.VerifyResetToken(r.Context(), token); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "valid"})
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// ResetPassword sets a new password for a live reset link.
// POST /reset-password/{token}.
func (h *UserHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := h.Svc.ResetPassword(r.Context(), r.PathValue("token"), req.Password); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// List returns all accounts for the admin console.
// GET /users?limit=&offset=.
func (h *UserHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := ParseLimitOffset(r)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	users, svcErr := h.Users.ListAll(r.Context(), limit, offset)
	if svcErr != nil {
		WriteAppError(w, svcErr)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": users})
}
