package bootstrap

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/stormgate/auth-api/config"
	httpx "github.com/stormgate/auth-api/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	DB       *sql.DB
	Redis    *goredis.Client
	Logger   *slog.Logger
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config

	handler := httpx.NewRouter(httpx.RouterServices{
		Auth:          cfg.Services.Auth,
		Users:         cfg.Services.Users,
		Approval:      cfg.Services.Approval,
		Authenticator: cfg.Services.Authenticator,
		UserLister:    cfg.Services.UserRepo,
		Tokens:        cfg.Services.Tokens,
		Cookies: httpx.CookieWriter{
			Domain:     appCfg.HTTP.CookieDomain,
			Secure:     appCfg.IsProduction,
			AccessTTL:  appCfg.Auth.Tokens.AccessTTL,
			RefreshTTL: appCfg.Auth.Tokens.RefreshTTL,
		},
		DB:     cfg.DB,
		Redis:  cfg.Redis,
		Logger: logger,
	})

	return startServer(logger, handler, appCfg.HTTP.Addr)
}

func startServer(logger *slog.Logger, handler http.Handler, addr string) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":3001"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}

	if logger != nil {
		logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if logger != nil {
		logger.Info("HTTP server stopped")
	}

	return nil
}
