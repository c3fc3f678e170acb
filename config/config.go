package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: identity provider and token signing configuration
//   - database.go: database and Redis configuration
//   - http.go: HTTP server configuration
//   - notify.go: email integrator configuration
type AppConfig struct {
	// IsProduction gates cookie Secure flags and other hardening.
	// Set PRODUCTION=true, or NODE_ENV=production for the legacy deployment.
	IsProduction bool `env:"PRODUCTION" envDefault:"false"`

	// Auth groups identity provider and token signing configuration.
	Auth AuthConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Email integrator configuration
	Email EmailConfig `envPrefix:"EMAIL_"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.Email.Sanitize()
	c.detectProductionMode()
}

// detectProductionMode checks NODE_ENV as a fallback for the PRODUCTION flag.
// The legacy deployment set NODE_ENV, so both spellings are honored.
func (c *AppConfig) detectProductionMode() {
	if !c.IsProduction {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsProduction = nodeEnv == "production" || nodeEnv == "prod"
	}
}
