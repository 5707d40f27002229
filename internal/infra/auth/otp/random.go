package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strings"
	"time"

	"gatekeeper/config"
	"gatekeeper/internal/domain/repository"
	"gatekeeper/internal/domain/service"
	"gatekeeper/internal/errors"
)

const otpKeyPrefix = "otp:"

// randomOTPService issues uniform six-digit codes and keeps the single
// source of truth in the ephemeral store. A successful verify deletes the
// entry, so the same code can never check out twice, and an expired entry
// is indistinguishable from one that never existed.
type randomOTPService struct {
	store repository.EphemeralStore
	ttl   time.Duration
}

// NewRandomOTPService is the constructor for randomOTPService.
func NewRandomOTPService(cfg *config.Config, store repository.EphemeralStore) service.OTPService {
	return &randomOTPService{
		store: store,
		ttl:   cfg.OTP.TTL,
	}
}

// Generate draws a fresh code and stores it under the subject, replacing any
// earlier code and restarting the TTL.
func (s *randomOTPService) Generate(ctx context.Context, subject string) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", err
	}

	if err := s.store.Set(ctx, s.key(subject), []byte(code), s.ttl); err != nil {
		return "", errors.Wrap(err, "store otp")
	}

	return code, nil
}

// Verify checks the stored code and consumes it on success.
func (s *randomOTPService) Verify(ctx context.Context, subject, code string) (bool, error) {
	stored, found, err := s.store.Get(ctx, s.key(subject))
	if err != nil {
		return false, errors.Wrap(err, "load otp")
	}
	if !found {
		return false, nil
	}

	if subtle.ConstantTimeCompare(stored, []byte(strings.TrimSpace(code))) != 1 {
		return false, nil
	}

	if err := s.store.Delete(ctx, s.key(subject)); err != nil {
		return false, errors.Wrap(err, "consume otp")
	}

	return true, nil
}

func (s *randomOTPService) key(subject string) string {
	return otpKeyPrefix + strings.ToLower(subject)
}

// randomCode draws a uniform six-digit code (leading digit never zero, so the
// code always reads as six characters).
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", errors.Wrap(err, "draw random code")
	}

	return big.NewInt(0).Add(n, big.NewInt(100000)).String(), nil
}
