package auth

import (
	"unicode"

	"gatekeeper/config"
	domainerrors "gatekeeper/internal/domain/errors"
	"gatekeeper/internal/domain/service"
)

// passwordValidator enforces the configured password strength policy.
type passwordValidator struct {
	cfg config.PasswordStrengthConfig
}

// NewPasswordValidator is the constructor for passwordValidator.
func NewPasswordValidator(cfg *config.Config) service.PasswordValidator {
	policy := config.PasswordStrengthConfig{}
	if cfg != nil && cfg.PasswordStrength != nil {
		policy = *cfg.PasswordStrength
	}

	return &passwordValidator{cfg: policy}
}

// Validate checks the password against the policy, reporting the first violated rule.
func (v *passwordValidator) Validate(password string) error {
	runes := []rune(password)

	if v.cfg.MinLength > 0 && len(runes) < v.cfg.MinLength {
		return domainerrors.ErrPasswordStrength.WrapMessage("password is too short")
	}
	if v.cfg.MaxLength > 0 && len(runes) > v.cfg.MaxLength {
		return domainerrors.ErrPasswordStrength.WrapMessage("password is too long")
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, r := range runes {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsNumber(r):
			hasNumber = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if v.cfg.RequireUppercase && !hasUpper {
		return domainerrors.ErrPasswordStrength.WrapMessage("password must contain an uppercase letter")
	}
	if v.cfg.RequireLowercase && !hasLower {
		return domainerrors.ErrPasswordStrength.WrapMessage("password must contain a lowercase letter")
	}
	if v.cfg.RequireNumbers && !hasNumber {
		return domainerrors.ErrPasswordStrength.WrapMessage("password must contain a digit")
	}
	if v.cfg.RequireSpecial && !hasSpecial {
		return domainerrors.ErrPasswordStrength.WrapMessage("password must contain a special character")
	}

	return nil
}
