// Package service defines interfaces for core, stateless domain logic.
// These services encapsulate business rules that don't naturally fit within a single entity.
package service

// PasswordHasher defines the interface for password hashing and verification.
// This abstracts the underlying hashing algorithm (e.g., argon2id), keeping the domain pure.
type PasswordHasher interface {
	// Hash generates a salted digest from a plaintext password.
	Hash(password string) (string, error)

	// Check compares a plaintext password with a stored digest. It returns false
	// for mismatches and for digests that cannot be parsed; it never panics on
	// corrupt input.
	Check(password, digest string) bool
}
