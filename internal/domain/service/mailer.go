package service

import "context"

// Mailer delivers transactional mail for the authentication flows. Link
// arguments are complete URLs with the plaintext token already embedded;
// the mailer never sees token internals.
type Mailer interface {
	// SendOTP delivers the signup verification code.
	SendOTP(ctx context.Context, to, name, code string) error

	// SendPasswordResetLink delivers the password reset link.
	SendPasswordResetLink(ctx context.Context, to, name, link string) error

	// SendEmailVerificationLink delivers the email ownership confirmation link.
	SendEmailVerificationLink(ctx context.Context, to, name, link string) error

	// SendDeletionConfirmation delivers the account deletion confirmation link.
	SendDeletionConfirmation(ctx context.Context, to, name, link string) error

	// SendAccountDeletedNotice informs the user their account has been removed.
	SendAccountDeletedNotice(ctx context.Context, to, name string) error
}
