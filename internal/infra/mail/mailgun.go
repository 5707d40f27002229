package mail

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gatekeeper/config"
	"gatekeeper/internal/domain/service"
	"gatekeeper/internal/errors"
)

const defaultMailgunAPIBase = "https://api.mailgun.net/v3"

// mailgunMailer sends mail through the Mailgun HTTP API.
type mailgunMailer struct {
	apiBase string
	domain  string
	apiKey  string
	from    string
	client  *http.Client
}

// NewMailgunMailer is the constructor for mailgunMailer.
func NewMailgunMailer(cfg *config.Config) (service.Mailer, error) {
	if cfg.Mail.Domain == "" || cfg.Mail.APIKey == "" || cfg.Mail.From == "" {
		return nil, errors.New("mailgun domain, api key, and from address must be provided")
	}

	apiBase := cfg.Mail.APIBase
	if apiBase == "" {
		apiBase = defaultMailgunAPIBase
	}

	return &mailgunMailer{
		apiBase: apiBase,
		domain:  cfg.Mail.Domain,
		apiKey:  cfg.Mail.APIKey,
		from:    cfg.Mail.From,
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (m *mailgunMailer) SendOTP(ctx context.Context, to, name, code string) error {
	body := fmt.Sprintf("Hi %s,\n\nYour verification code is %s. It will expire in 5 minutes.\n", name, code)

	return m.send(ctx, to, "Verify your email address", body)
}

func (m *mailgunMailer) SendPasswordResetLink(ctx context.Context, to, name, link string) error {
	body := fmt.Sprintf("Hi %s,\n\nUse the link below to reset your password. The link is valid for one hour and works only once.\n\n%s\n\nIf you did not request this, you can ignore this mail.\n", name, link)

	return m.send(ctx, to, "Reset your password", body)
}

func (m *mailgunMailer) SendEmailVerificationLink(ctx context.Context, to, name, link string) error {
	body := fmt.Sprintf("Hi %s,\n\nConfirm your email address with the link below.\n\n%s\n", name, link)

	return m.send(ctx, to, "Confirm your email address", body)
}

func (m *mailgunMailer) SendDeletionConfirmation(ctx context.Context, to, name, link string) error {
	body := fmt.Sprintf("Hi %s,\n\nConfirm the deletion of your account with the link below. The link is valid for one hour. This cannot be undone.\n\n%s\n\nIf you did not request this, change your password immediately.\n", name, link)

	return m.send(ctx, to, "Confirm account deletion", body)
}

func (m *mailgunMailer) SendAccountDeletedNotice(ctx context.Context, to, name string) error {
	body := fmt.Sprintf("Hi %s,\n\nYour account and all associated data have been deleted.\n", name)

	return m.send(ctx, to, "Your account has been deleted", body)
}

// send posts one message to the Mailgun messages endpoint.
func (m *mailgunMailer) send(ctx context.Context, to, subject, text string) error {
	form := url.Values{}
	form.Set("from", m.from)
	form.Set("to", to)
	form.Set("subject", subject)
	form.Set("text", text)

	endpoint := fmt.Sprintf("%s/%s/messages", m.apiBase, m.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "build mailgun request")
	}
	req.SetBasicAuth("api", m.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send mail")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return errors.Errorf("mailgun returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
