package service

// PasswordValidator checks a candidate password against the configured
// strength policy before it is ever hashed.
type PasswordValidator interface {
	// Validate returns a domain error describing the first violated rule,
	// or nil when the password satisfies the policy.
	Validate(password string) error
}
