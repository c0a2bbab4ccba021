package secrets

import (
	"context"
	"fmt"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/passage-gw/passage/internal/config"
	"github.com/passage-gw/passage/internal/observability"
)

// DefaultVaultMount is the default KV v2 mount point.
const DefaultVaultMount = "secret"

// VaultProvider resolves secret references from HashiCorp Vault KV v2.
type VaultProvider struct {
	client *vaultapi.Client
	mount  string
	logger observability.Logger
}

// NewVaultProvider creates a new Vault secrets provider.
func NewVaultProvider(cfg config.VaultConfig, logger observability.Logger) (*VaultProvider, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: vault address is required", ErrProviderNotConfigured)
	}

	if logger == nil {
		logger = observability.NopLogger()
	}

	apiCfg := vaultapi.DefaultConfig()
	apiCfg.Address = cfg.Address
	if cfg.Timeout.Duration() > 0 {
		apiCfg.Timeout = cfg.Timeout.Duration()
	} else {
		apiCfg.Timeout = 30 * time.Second
	}
	if cfg.TLSSkipVerify {
		if err := apiCfg.ConfigureTLS(&vaultapi.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("failed to configure vault TLS: %w", err)
		}
	}

	client, err := vaultapi.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	mount := cfg.Mount
	if mount == "" {
		mount = DefaultVaultMount
	}

	return &VaultProvider{
		client: client,
		mount:  mount,
		logger: logger,
	}, nil
}

// Type returns the provider type.
func (p *VaultProvider) Type() ProviderType {
	return ProviderTypeVault
}

// Resolve resolves a "path/to/secret#key" reference from the KV v2 mount.
// When no key fragment is given, the field "value" is used.
func (p *VaultProvider) Resolve(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", ErrInvalidRef
	}

	path, key := ref, "value"
	if idx := strings.LastIndex(ref, "#"); idx >= 0 {
		path, key = ref[:idx], ref[idx+1:]
		if path == "" || key == "" {
			return "", fmt.Errorf("%w: %s", ErrInvalidRef, ref)
		}
	}

	secret, err := p.client.KVv2(p.mount).Get(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to read vault secret %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, path)
	}

	value, ok := secret.Data[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: key %q not present in %s", ErrSecretNotFound, key, path)
	}

	p.logger.Debug("resolved secret from vault",
		observability.String("path", path),
		observability.String("key", key),
	)

	return value, nil
}

// Close releases provider resources.
func (p *VaultProvider) Close() error {
	return nil
}

var _ Provider = (*VaultProvider)(nil)
