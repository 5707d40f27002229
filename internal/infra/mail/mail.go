// Package mail implements outbound mail delivery for the authentication flows.
package mail

import (
	"log/slog"

	"gatekeeper/config"
	"gatekeeper/internal/domain/service"
	"gatekeeper/internal/errors"
)

// Provider names accepted in configuration.
const (
	ProviderMailgun = "mailgun"
	ProviderDev     = "dev"
)

// NewMailer builds the configured mailer implementation.
func NewMailer(cfg *config.Config, logger *slog.Logger) (service.Mailer, error) {
	if cfg.Mail == nil {
		return NewDevMailer(logger), nil
	}

	switch cfg.Mail.Provider {
	case ProviderMailgun:
		return NewMailgunMailer(cfg)
	case ProviderDev, "":
		return NewDevMailer(logger), nil
	default:
		return nil, errors.Errorf("unknown mail provider %q", cfg.Mail.Provider)
	}
}
