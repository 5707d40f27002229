// Package otp implements the one-time code strategies used during signup
// verification. Codes are always six digits; what differs is where the
// single-use state lives.
package otp

import (
	"gatekeeper/config"
	"gatekeeper/internal/domain/repository"
	"gatekeeper/internal/domain/service"
	"gatekeeper/internal/errors"
)

// Strategy names accepted in configuration.
const (
	StrategyHOTP   = "hotp"
	StrategyRandom = "random"
)

// digits is the fixed length of every generated code.
const digits = 6

// NewOTPService builds the configured strategy.
func NewOTPService(cfg *config.Config, store repository.EphemeralStore, clock service.Clock) (service.OTPService, error) {
	switch cfg.OTP.Strategy {
	case StrategyHOTP:
		return NewHOTPService(cfg, clock)
	case StrategyRandom:
		return NewRandomOTPService(cfg, store), nil
	default:
		return nil, errors.Errorf("unknown otp strategy %q", cfg.OTP.Strategy)
	}
}
