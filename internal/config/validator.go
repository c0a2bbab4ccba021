package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Valid target classes.
const (
	ClassPrimary = "primary"
	ClassStaging = "staging"
)

// Validate checks the configuration for consistency. It is called by Load
// after defaults are applied; call it directly when building a Config in
// code.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("config: at least one target is required")
	}

	for i := range c.Targets {
		if err := c.Targets[i].Validate(); err != nil {
			return fmt.Errorf("config: target %d: %w", i, err)
		}
	}

	if c.Proxy.DefaultTenant != "" && !c.hasTenant(c.Proxy.DefaultTenant) {
		return fmt.Errorf("config: default tenant %q does not match any target", c.Proxy.DefaultTenant)
	}

	if _, err := url.Parse(c.Auth.Host); err != nil {
		return fmt.Errorf("config: invalid auth host %q: %w", c.Auth.Host, err)
	}

	switch c.Secrets.Provider {
	case "env", "local", "vault":
	default:
		return fmt.Errorf("config: unknown secrets provider %q", c.Secrets.Provider)
	}

	return nil
}

// Validate checks a single target descriptor.
func (t *Target) Validate() error {
	if t.TenantID == "" {
		return fmt.Errorf("tenantId is required")
	}
	if t.TenantName == "" {
		return fmt.Errorf("tenantName is required")
	}

	switch strings.ToLower(t.Class) {
	case ClassPrimary, ClassStaging:
	case "":
		return fmt.Errorf("class is required")
	default:
		return fmt.Errorf("unknown target class %q", t.Class)
	}

	u, err := url.Parse(t.BaseURI)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid baseUri %q", t.BaseURI)
	}

	if t.ClientID == "" {
		return fmt.Errorf("clientId is required")
	}
	if t.ClientSecret == "" && t.ClientSecretEncrypted == "" {
		return fmt.Errorf("one of clientSecret or clientSecretEncrypted is required")
	}
	if t.ClientSecretEncrypted != "" && t.SecretKeyRef == "" {
		return fmt.Errorf("secretKeyRef is required with clientSecretEncrypted")
	}
	if t.ReadGroup == "" || t.ReadWriteGroup == "" {
		return fmt.Errorf("readGroup and readWriteGroup are required")
	}

	return nil
}

func (c *Config) hasTenant(id string) bool {
	for i := range c.Targets {
		if strings.EqualFold(c.Targets[i].TenantID, id) {
			return true
		}
	}
	return false
}
