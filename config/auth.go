package config

import "time"

// AzureADConfig contains the federated identity provider settings.
// The issuer and JWKS URLs are derived from the tenant.
type AzureADConfig struct {
	TenantID     string `env:"TENANT_ID"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URI" envDefault:"http://localhost:3001/auth/callback"`
	Scope        string `env:"SCOPE"        envDefault:"openid profile email offline_access"`

	// APIIdentifier is an optional extra accepted audience for federated
	// tokens, alongside the client ID and its api:// form.
	APIIdentifier string `env:"API_IDENTIFIER"`
}

// TokenConfig contains internal token signing secrets and lifetimes.
// AccessSecret and RefreshSecret are required; ApprovalSecret falls back
// to AccessSecret when unset.
type TokenConfig struct {
	AccessSecret   string `env:"ACCESS_TOKEN_SECRET"`
	RefreshSecret  string `env:"REFRESH_TOKEN_SECRET"`
	ApprovalSecret string `env:"APPROVAL_TOKEN_SECRET"`

	AccessTTL   time.Duration `env:"ACCESS_TOKEN_TTL"   envDefault:"15m"`
	RefreshTTL  time.Duration `env:"REFRESH_TOKEN_TTL"  envDefault:"168h"`
	ApprovalTTL time.Duration `env:"APPROVAL_TOKEN_TTL" envDefault:"24h"`
	ResetTTL    time.Duration `env:"RESET_TOKEN_TTL"    envDefault:"20m"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	AzureAD AzureADConfig `envPrefix:"AZURE_"`
	Tokens  TokenConfig

	// AdminEmail receives approval-request notifications for PENDING signups.
	AdminEmail string `env:"ADMIN_EMAIL" envDefault:"admin@stormgate.com"`

	// BaseURL is the public base URL used to construct approval/deny links.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:3001"`

	// JWKSCacheTTL bounds how long fetched provider signing keys are reused.
	JWKSCacheTTL time.Duration `env:"JWKS_CACHE_TTL" envDefault:"1h"`
}

// Sanitize applies defaults that cannot be expressed with env tags.
func (a *AuthConfig) Sanitize() {
	if a.Tokens.ApprovalSecret == "" {
		a.Tokens.ApprovalSecret = a.Tokens.AccessSecret
	}
	if a.JWKSCacheTTL <= 0 {
		a.JWKSCacheTTL = time.Hour
	}
}
