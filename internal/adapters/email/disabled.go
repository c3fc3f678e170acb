package email

import (
	"context"
	"log/slog"

	"github.com/stormgate/auth-api/internal/ports"
)

// DisabledMailer logs and drops every message. Used when no integrator
// URL is configured, so dev environments run without a mail backend.
type DisabledMailer struct {
	Logger *slog.Logger
}

func (d *DisabledMailer) Send(ctx context.Context, msg ports.Email) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email delivery disabled; dropping message",
		"to", msg.To,
		"template", msg.Template,
	)
	return nil
}
