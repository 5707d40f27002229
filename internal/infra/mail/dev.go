package mail

import (
	"context"
	"log/slog"

	"gatekeeper/internal/domain/service"
)

// devMailer logs instead of sending. It keeps local development and tests
// free of outbound mail while still surfacing codes and links in the log
// stream. Token and code values stay out of the log record.
type devMailer struct {
	logger *slog.Logger
}

// NewDevMailer is the constructor for devMailer.
func NewDevMailer(logger *slog.Logger) service.Mailer {
	return &devMailer{logger: logger}
}

func (m *devMailer) SendOTP(ctx context.Context, to, name, code string) error {
	m.logger.InfoContext(ctx, "dev mailer: signup otp",
		slog.String("to", to),
		slog.Int("codeLength", len(code)))

	return nil
}

func (m *devMailer) SendPasswordResetLink(ctx context.Context, to, name, link string) error {
	m.logger.InfoContext(ctx, "dev mailer: password reset link",
		slog.String("to", to))

	return nil
}

func (m *devMailer) SendEmailVerificationLink(ctx context.Context, to, name, link string) error {
	m.logger.InfoContext(ctx, "dev mailer: email verification link",
		slog.String("to", to))

	return nil
}

func (m *devMailer) SendDeletionConfirmation(ctx context.Context, to, name, link string) error {
	m.logger.InfoContext(ctx, "dev mailer: account deletion confirmation",
		slog.String("to", to))

	return nil
}

func (m *devMailer) SendAccountDeletedNotice(ctx context.Context, to, name string) error {
	m.logger.InfoContext(ctx, "dev mailer: account deleted notice",
		slog.String("to", to))

	return nil
}
