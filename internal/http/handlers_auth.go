package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/stormgate/auth-api/internal/domain/auth"
	"github.com/stormgate/auth-api/internal/domain/model"
	"github.com/stormgate/auth-api/internal/service"
	"github.com/stormgate/auth-api/internal/tokens"
)

// AuthServiceInterface defines the interface for federated auth operations.
type AuthServiceInterface interface {
	BeginLogin(ctx context.Context, application domainauth.Application, returnTo string) (string, error)
	CompleteLogin(ctx context.Context, state, code string) (*service.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.LoginResult, error)
	Logout(ctx context.Context, userID string) error
	CurrentUser(ctx context.Context, userID string) (*model.User, error)
}

// RefreshVerifier extracts the user id from a refresh token so logout
// can revoke the stored token without requiring a bearer credential.
type RefreshVerifier interface {
	VerifyRefresh(token string) (*tokens.Claims, error)
}

// AuthHandlers provides HTTP handlers for the federated login flow and
// token lifecycle.
type AuthHandlers struct {
	Svc     AuthServiceInterface
	Tokens  RefreshVerifier
	Cookies CookieWriter
	Logger  *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Login starts the federated login flow.
// GET /auth/login?application=<app>&return_url=<url>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	application := domainauth.NormalizeApplication(r.URL.Query().Get("application"))
	returnTo := sanitizeReturnURL(r.URL.Query().Get("return_url"))

	authURL, err := h.Svc.BeginLogin(r.Context(), application, returnTo)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "begin login failed", "err", err)
		WriteAppError(w, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback completes the federated login flow.
// GET /auth/callback?code=<code>&state=<state>, or ?error=<err> when
// the provider rejected the attempt.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// A provider error takes precedence over everything else, including
	// a code that somehow arrived alongside it.
	if provErr := query.Get("error"); provErr != "" {
		desc := query.Get("error_description")
		if desc == "" {
			desc = provErr
		}
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: provErr,
			Err:     errors.New(desc),
		})
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_request",
			Err:     errors.New("code and state parameters are required"),
		})
		return
	}

	result, err := h.Svc.CompleteLogin(r.Context(), state, code)
	if err != nil {
		h.logger().WarnContext(r.Context(), "login completion failed", "err", err)
		WriteAppError(w, err)
		return
	}

	h.Cookies.SetAuthCookies(w, r, result.AccessToken, result.RefreshToken)

	if returnTo := sanitizeReturnURL(result.ReturnTo); returnTo != "" {
		http.Redirect(w, r, withTokenParam(returnTo, result.AccessToken), http.StatusFound)
		return
	}
	WriteJSON(w, http.StatusOK, loginView(result))
}

func loginView(result *service.LoginResult) map[string]any {
	view := map[string]any{
		"accesstoken": result.AccessToken,
		"user": map[string]any{
			"id":          result.User.ID,
			"email":       result.User.Email,
			"name":        result.User.FullName(),
			"role":        result.User.Role,
			"application": result.User.Application,
			"status":      result.User.Status,
		},
	}
	if result.LimitedAccess {
		view["limitedAccess"] = true
		view["status"] = result.User.Status
	}
	return view
}

// Refresh rotates the refresh token and issues a new access token. The
// token is read from the refresh cookie, falling back to a JSON body.
// POST /auth/refresh.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	token := h.refreshTokenFrom(r)
	if token == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "missing_refresh_token",
			Err:     errors.New("refresh token is required"),
		})
		return
	}

	result, err := h.Svc.Refresh(r.Context(), token)
	if err != nil {
		h.Cookies.ClearAuthCookies(w, r)
		WriteAppError(w, err)
		return
	}

	h.Cookies.SetAuthCookies(w, r, result.AccessToken, result.RefreshToken)
	WriteJSON(w, http.StatusOK, loginView(result))
}

func (h *AuthHandlers) refreshTokenFrom(r *http.Request) string {
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		return body.RefreshToken
	}
	return ""
}

// Logout revokes the refresh token named by the refresh cookie and
// clears the auth cookies. Idempotent: a missing or invalid cookie
// still clears cookies and succeeds.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil && cookie.Value != "" {
		if claims, verr := h.Tokens.VerifyRefresh(cookie.Value); verr == nil {
			if lerr := h.Svc.Logout(r.Context(), claims.Subject); lerr != nil {
				h.logger().WarnContext(r.Context(), "logout failed", "err", lerr)
			}
		}
	}
	h.Cookies.ClearAuthCookies(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated account.
// GET /auth/me.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	user, err := h.Svc.CurrentUser(r.Context(), principal.UserID)
	if err != nil {
		// Federated principals may have no local record yet.
		WriteJSON(w, http.StatusOK, map[string]any{"user": principalView(principal)})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"user": user})
}

func principalView(p domainauth.Principal) map[string]any {
	return map[string]any{
		"id":          p.UserID,
		"email":       p.Email,
		"role":        p.Role,
		"application": p.Application,
	}
}
