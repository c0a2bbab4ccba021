package secrets

import (
	"fmt"

	"github.com/passage-gw/passage/internal/config"
	"github.com/passage-gw/passage/internal/observability"
)

// NewProvider creates a secrets provider from configuration.
func NewProvider(cfg config.SecretsConfig, logger observability.Logger) (Provider, error) {
	providerType, err := ValidateProviderType(cfg.Provider)
	if err != nil {
		return nil, err
	}

	switch providerType {
	case ProviderTypeEnv:
		return NewEnvProvider(cfg.EnvPrefix, logger), nil
	case ProviderTypeLocal:
		return NewLocalProvider(cfg.LocalPath, logger)
	case ProviderTypeVault:
		return NewVaultProvider(cfg.Vault, logger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidProviderType, cfg.Provider)
	}
}
