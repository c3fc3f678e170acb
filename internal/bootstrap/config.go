// Package bootstrap wires configuration, infrastructure connections,
// and services into a runnable application.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/stormgate/auth-api/config"
)

// InitLogger initializes the structured logger.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateConfig rejects configurations that cannot run safely. Token
// secrets have no usable default; starting without them would mint
// tokens anyone can forge.
func ValidateConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if cfg.Auth.Tokens.AccessSecret == "" {
		return errors.New("ACCESS_TOKEN_SECRET is required")
	}
	if cfg.Auth.Tokens.RefreshSecret == "" {
		return errors.New("REFRESH_TOKEN_SECRET is required")
	}
	if cfg.IsProduction && cfg.Auth.AzureAD.TenantID == "" {
		return errors.New("AZURE_TENANT_ID is required in production")
	}
	return nil
}
