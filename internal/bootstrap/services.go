package bootstrap

import (
	"context"
	"database/sql"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/stormgate/auth-api/config"
	"github.com/stormgate/auth-api/internal/adapters/azuread"
	"github.com/stormgate/auth-api/internal/adapters/email"
	redisadapter "github.com/stormgate/auth-api/internal/adapters/redis"
	"github.com/stormgate/auth-api/internal/data"
	domainauth "github.com/stormgate/auth-api/internal/domain/auth"
	apperrors "github.com/stormgate/auth-api/internal/errors"
	"github.com/stormgate/auth-api/internal/ports"
	"github.com/stormgate/auth-api/internal/service"
	"github.com/stormgate/auth-api/internal/tokens"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth          *service.AuthService
	Users         *service.UserService
	Approval      *service.ApprovalService
	Authenticator *service.Authenticator
	Tokens        *tokens.Service
	UserRepo      *data.UserRepo
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient *goredis.Client
	Logger      *slog.Logger
}

// NewServices builds the service graph: data adapters, identity
// provider, token service, then the services on top of them.
func NewServices(ctx context.Context, deps *ServiceDeps) (*ServiceContainer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	userRepo := data.NewUserRepo(deps.DB)
	flowStore := redisadapter.NewFlowStore(deps.RedisClient)
	refreshStore := redisadapter.NewRefreshTokenStore(deps.RedisClient)
	tokenSvc := tokens.NewService(cfg.Auth.Tokens)
	mailer := buildMailer(cfg.Email, logger)

	provider, verifier, err := buildIdentityProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	approvalSvc := service.NewApprovalService(
		userRepo, tokenSvc, mailer,
		cfg.Auth.AdminEmail, cfg.Auth.BaseURL, logger,
	)
	authSvc := service.NewAuthService(
		provider, flowStore, userRepo, refreshStore, tokenSvc, approvalSvc, logger,
	)
	userSvc := service.NewUserService(
		userRepo, tokenSvc, authSvc, approvalSvc, mailer, cfg.Auth.BaseURL, logger,
	)
	authenticator := service.NewAuthenticator(tokenSvc, verifier, userRepo, logger)

	return &ServiceContainer{
		Auth:          authSvc,
		Users:         userSvc,
		Approval:      approvalSvc,
		Authenticator: authenticator,
		Tokens:        tokenSvc,
		UserRepo:      userRepo,
	}, nil
}

// buildIdentityProvider wires the Azure AD adapters. With no tenant
// configured the federated endpoints stay mounted but reject cleanly,
// so local-credential deployments run without an identity provider.
func buildIdentityProvider(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (ports.IdentityProvider, ports.FederatedVerifier, error) {
	azCfg := cfg.Auth.AzureAD
	if azCfg.TenantID == "" || azCfg.ClientID == "" {
		logger.Warn("azure ad tenant/client not configured; federated login disabled")
		return &disabledProvider{}, nil, nil
	}

	provider, err := azuread.NewProvider(ctx, azCfg)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrCodeUpstream, "init identity provider")
	}

	keyset := azuread.NewKeyset(azCfg.TenantID, cfg.Auth.JWKSCacheTTL)
	verifier := azuread.NewVerifier(azCfg, keyset)

	logger.Info("azure ad identity provider configured", "tenant_id", azCfg.TenantID)
	return provider, verifier, nil
}

func buildMailer(cfg config.EmailConfig, logger *slog.Logger) ports.Mailer {
	if cfg.IntegratorURL == "" {
		return &email.DisabledMailer{Logger: logger}
	}
	client, err := email.NewClient(cfg)
	if err != nil {
		logger.Error("email integrator misconfigured; delivery disabled", "error", err)
		return &email.DisabledMailer{Logger: logger}
	}
	return client
}

// disabledProvider rejects federated logins when no tenant is configured.
type disabledProvider struct{}

func (disabledProvider) Begin(context.Context, domainauth.Application, string) (*domainauth.LoginFlow, string, error) {
	return nil, "", apperrors.Upstream("federated login is not configured")
}

func (disabledProvider) Exchange(context.Context, string, *domainauth.LoginFlow) (domainauth.Identity, error) {
	return domainauth.Identity{}, apperrors.Upstream("federated login is not configured")
}
