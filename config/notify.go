package config

import "time"

// EmailConfig contains settings for the external email integrator service.
// The integrator owns delivery and templates; this service only posts
// templated-send requests to it.
type EmailConfig struct {
	// IntegratorURL is the base URL of the email integrator service.
	// When empty, notifications are disabled (logged and skipped).
	IntegratorURL string `env:"INTEGRATOR_URL"`

	Timeout    time.Duration `env:"TIMEOUT"     envDefault:"5s"`
	RetryLimit int           `env:"RETRY_LIMIT" envDefault:"2"`

	// AppName and AppDisplayName are passed through to templates.
	AppName        string `env:"APP_NAME"         envDefault:"Storm Gate"`
	AppDisplayName string `env:"APP_DISPLAY_NAME" envDefault:"User Management System"`
}

// Sanitize applies guardrails to email configuration values.
func (e *EmailConfig) Sanitize() {
	if e.Timeout <= 0 {
		e.Timeout = 5 * time.Second
	}
	if e.RetryLimit < 0 {
		e.RetryLimit = 0
	}
}
