// Package validator adapts go-playground/validator to echo's Validator interface.
package validator

import (
	playground "github.com/go-playground/validator/v10"
)

// Validator wraps a single validator instance; it caches struct metadata,
// so one instance is shared across requests.
type Validator struct {
	validate *playground.Validate
}

// New creates the request validator used by the echo server.
func New() *Validator {
	return &Validator{validate: playground.New(playground.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}
