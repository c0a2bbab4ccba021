package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/passage-gw/passage/internal/observability"
)

// LocalProvider resolves secret references from files under a base path.
type LocalProvider struct {
	basePath string
	logger   observability.Logger
}

// NewLocalProvider creates a new local file secrets provider.
func NewLocalProvider(basePath string, logger observability.Logger) (*LocalProvider, error) {
	if basePath == "" {
		return nil, fmt.Errorf("%w: base path is required", ErrProviderNotConfigured)
	}

	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to access base path: %v", ErrProviderNotConfigured, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: base path is not a directory: %s", ErrProviderNotConfigured, basePath)
	}

	if logger == nil {
		logger = observability.NopLogger()
	}

	return &LocalProvider{basePath: basePath, logger: logger}, nil
}

// Type returns the provider type.
func (p *LocalProvider) Type() ProviderType {
	return ProviderTypeLocal
}

// Resolve reads the file base-path/ref and returns its trimmed contents.
func (p *LocalProvider) Resolve(_ context.Context, ref string) (string, error) {
	if ref == "" {
		return "", ErrInvalidRef
	}

	clean := filepath.Clean(ref)
	if strings.Contains(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: %s", ErrInvalidRef, ref)
	}

	path := filepath.Join(p.basePath, clean)
	data, err := os.ReadFile(path) //nolint:gosec // path traversal rejected above
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, ref)
		}
		return "", fmt.Errorf("failed to read secret %s: %w", ref, err)
	}

	p.logger.Debug("resolved secret from file",
		observability.String("ref", ref),
	)

	return strings.TrimSpace(string(data)), nil
}

// Close releases provider resources.
func (p *LocalProvider) Close() error {
	return nil
}

var _ Provider = (*LocalProvider)(nil)
