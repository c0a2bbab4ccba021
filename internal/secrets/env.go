package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/passage-gw/passage/internal/observability"
)

// DefaultEnvPrefix is the default prefix for environment variable secrets.
const DefaultEnvPrefix = "PASSAGE_SECRET_"

// EnvProvider resolves secret references from environment variables.
type EnvProvider struct {
	prefix string
	logger observability.Logger
}

// NewEnvProvider creates a new environment variable secrets provider.
func NewEnvProvider(prefix string, logger observability.Logger) *EnvProvider {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &EnvProvider{prefix: prefix, logger: logger}
}

// Type returns the provider type.
func (p *EnvProvider) Type() ProviderType {
	return ProviderTypeEnv
}

// Resolve resolves a reference to the value of {prefix}{REF}, with the
// reference uppercased and separators normalized to underscores.
func (p *EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	if ref == "" {
		return "", ErrInvalidRef
	}

	name := strings.ToUpper(ref)
	for _, sep := range []string{"-", ".", "/"} {
		name = strings.ReplaceAll(name, sep, "_")
	}
	name = p.prefix + name

	value, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("%w: environment variable %s not set", ErrSecretNotFound, name)
	}

	p.logger.Debug("resolved secret from environment",
		observability.String("ref", ref),
		observability.String("envVar", name),
	)

	return value, nil
}

// Close releases provider resources.
func (p *EnvProvider) Close() error {
	return nil
}

var _ Provider = (*EnvProvider)(nil)
