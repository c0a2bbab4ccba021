// Package secrets provides a unified interface for resolving secret
// references from multiple backends: environment variables, local files,
// and HashiCorp Vault. Target client secrets are stored encrypted in the
// configuration; the provider supplies the decryption key material.
package secrets

import (
	"context"
	"errors"
	"fmt"
)

// ProviderType represents the type of secrets provider.
type ProviderType string

const (
	// ProviderTypeEnv resolves references from environment variables.
	ProviderTypeEnv ProviderType = "env"
	// ProviderTypeLocal resolves references from files under a base path.
	ProviderTypeLocal ProviderType = "local"
	// ProviderTypeVault resolves references from HashiCorp Vault KV v2.
	ProviderTypeVault ProviderType = "vault"
)

// Common errors for secrets providers.
var (
	// ErrSecretNotFound is returned when a reference does not resolve.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrProviderNotConfigured is returned when the provider is not
	// properly configured.
	ErrProviderNotConfigured = errors.New("provider not configured")
	// ErrInvalidRef is returned when the secret reference is malformed.
	ErrInvalidRef = errors.New("invalid secret reference")
	// ErrInvalidProviderType is returned for unknown provider types.
	ErrInvalidProviderType = errors.New("invalid provider type")
)

// Provider resolves secret references to their values.
type Provider interface {
	// Type returns the provider type.
	Type() ProviderType

	// Resolve resolves a reference to a secret value. Reference format
	// depends on the provider:
	//   - env:   "NAME" maps to an environment variable {PREFIX}NAME
	//   - local: "name" maps to base-path/name
	//   - vault: "path/to/secret#key" maps to a KV v2 field
	Resolve(ctx context.Context, ref string) (string, error)

	// Close releases provider resources.
	Close() error
}

// ValidateProviderType validates a provider type string.
func ValidateProviderType(providerType string) (ProviderType, error) {
	switch ProviderType(providerType) {
	case ProviderTypeEnv, ProviderTypeLocal, ProviderTypeVault:
		return ProviderType(providerType), nil
	default:
		return "", fmt.Errorf("%w: %s, must be one of: env, local, vault", ErrInvalidProviderType, providerType)
	}
}
