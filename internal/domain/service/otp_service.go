package service

import "context"

// OTPService issues and checks short-lived numeric one-time codes bound to a
// subject (the email being verified). Codes are single-use: the orchestrator
// consumes the surrounding enrollment state, and store-backed strategies also
// delete the code itself on a successful check.
type OTPService interface {
	// Generate produces a fresh code for the subject. Store-backed strategies
	// persist it with a TTL; counter-based strategies derive it statelessly.
	Generate(ctx context.Context, subject string) (string, error)

	// Verify reports whether code is currently valid for the subject.
	// Expired, absent, and wrong codes are indistinguishable to the caller.
	Verify(ctx context.Context, subject, code string) (bool, error)
}
