// Package entity contains the core business objects of the project.
package entity

// ProviderType represents the origin of an authentication credential.
type ProviderType string

const (
	// ProviderLocal indicates an email/password credential managed by this service.
	ProviderLocal ProviderType = "local"
	// ProviderGoogle indicates a federated credential backed by Google Sign-In.
	ProviderGoogle ProviderType = "google"
	// ProviderGitHub indicates a federated credential backed by GitHub OAuth.
	ProviderGitHub ProviderType = "github"
)

// String returns the string representation of the ProviderType.
func (p ProviderType) String() string {
	return string(p)
}

// IsValid checks if the ProviderType is a valid value.
func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderLocal, ProviderGoogle, ProviderGitHub:
		return true
	default:
		return false
	}
}

// IsFederated reports whether the provider is an external identity provider.
func (p ProviderType) IsFederated() bool {
	return p == ProviderGoogle || p == ProviderGitHub
}
