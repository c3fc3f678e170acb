package httpx

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/stormgate/auth-api/internal/domain/auth"
	"github.com/stormgate/auth-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth          *service.AuthService
	Users         *service.UserService
	Approval      *service.ApprovalService
	Authenticator *service.Authenticator
	UserLister    UserLister
	Tokens        RefreshVerifier

	Cookies CookieWriter
	DB      *sql.DB
	Redis   *redis.Client
	Logger  *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authHandlers := &AuthHandlers{
		Svc:     services.Auth,
		Tokens:  services.Tokens,
		Cookies: services.Cookies,
		Logger:  logger,
	}
	userHandlers := &UserHandlers{
		Svc:     services.Users,
		Users:   services.UserLister,
		Cookies: services.Cookies,
		Logger:  logger,
	}
	approvalHandlers := &ApprovalHandlers{Svc: services.Approval, Logger: logger}
	healthHandlers := &HealthHandlers{DB: services.DB, Redis: services.Redis}

	requireAuth := RequireAuth(services.Authenticator)
	adminOnly := RequireRole(services.Authenticator, domainauth.RoleAdmin, domainauth.RoleSuperAdmin)

	// Federated login flow and token lifecycle. Logout authenticates
	// via the refresh cookie rather than the access token.
	mux.HandleFunc("GET /auth/login", authHandlers.Login)
	mux.HandleFunc("GET /auth/callback", authHandlers.Callback)
	mux.HandleFunc("POST /auth/refresh", authHandlers.Refresh)
	mux.HandleFunc("POST /auth/logout", authHandlers.Logout)
	mux.Handle("GET /auth/me", requireAuth(http.HandlerFunc(authHandlers.Me)))

	// Local accounts.
	mux.HandleFunc("POST /register", userHandlers.Register)
	mux.HandleFunc("POST /login", userHandlers.Login)
	mux.HandleFunc("POST /check-status", userHandlers.Status)
	mux.Handle("PUT /edit/{id}", requireAuth(http.HandlerFunc(userHandlers.UpdateProfile)))

	// Password reset.
	mux.HandleFunc("POST /forgot-password", userHandlers.ForgotPassword)
	mux.HandleFunc("GET /reset-password/{token}", userHandlers.VerifyResetToken)
	mux.HandleFunc("POST /reset-password/{token}", userHandlers.ResetPassword)

	// Approval workflow. Link endpoints authenticate via the signed
	// token they carry; the admin console paths need an admin role.
	mux.HandleFunc("GET /auth/approve", approvalHandlers.ApproveByToken)
	mux.HandleFunc("GET /auth/deny", approvalHandlers.DenyByToken)
	mux.Handle("POST /auth/manual-approve", adminOnly(http.HandlerFunc(approvalHandlers.Approve)))
	mux.Handle("POST /auth/manual-deny", adminOnly(http.HandlerFunc(approvalHandlers.Deny)))
	mux.Handle("GET /auth/pending-users", adminOnly(http.HandlerFunc(approvalHandlers.PendingUsers)))

	// Admin account listing.
	mux.Handle("GET /users", adminOnly(http.HandlerFunc(userHandlers.List)))

	mux.HandleFunc("GET /healthz", healthHandlers.Healthz)
	mux.HandleFunc("HEAD /healthz", healthHandlers.Healthz)

	var handler http.Handler = mux
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}
