// Package config provides configuration management for the authentication
// proxy. Configuration is loaded from a YAML file with environment variable
// substitution, validated once at startup, and optionally watched for
// changes to the backend target list.
package config

import (
	"time"
)

// Default configuration values.
const (
	DefaultListenAddress  = ":8080"
	DefaultMetricsAddress = ":9090"
	DefaultAuthHost       = "https://login.windows.net"
	DefaultExpiryBuffer   = 90 * time.Second
	DefaultHeaderPrefix   = "x-ms-"
)

// Config holds all configuration settings for the proxy.
type Config struct {
	Server        ServerConfig        `json:"server" yaml:"server"`
	Auth          AuthConfig          `json:"auth" yaml:"auth"`
	Proxy         ProxyConfig         `json:"proxy" yaml:"proxy"`
	Secrets       SecretsConfig       `json:"secrets" yaml:"secrets"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
	Targets       []Target            `json:"targets" yaml:"targets"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddress   string   `json:"listenAddress" yaml:"listenAddress"`
	MetricsAddress  string   `json:"metricsAddress" yaml:"metricsAddress"`
	ReadTimeout     Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout    Duration `json:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout     Duration `json:"idleTimeout" yaml:"idleTimeout"`
	ShutdownTimeout Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`
}

// AuthConfig holds token acquisition settings.
type AuthConfig struct {
	// Host is the base URL of the OAuth2 authority. The tenant id and
	// /oauth2/token are appended per target.
	Host string `json:"host" yaml:"host"`

	// ExpiryBuffer is subtracted from the upstream expires_in so a token
	// is never presented after the authority considers it expired.
	ExpiryBuffer Duration `json:"expiryBuffer" yaml:"expiryBuffer"`

	// Timeout bounds the token exchange call.
	Timeout Duration `json:"timeout" yaml:"timeout"`
}

// ProxyConfig holds request forwarding settings.
type ProxyConfig struct {
	// DefaultTenant is used when a request carries neither a tenant id
	// nor a tenant name header.
	DefaultTenant string `json:"defaultTenant" yaml:"defaultTenant"`

	// DiagnosticHeaderPrefix selects which backend response headers are
	// copied through to the caller (correlation/request identifiers).
	DiagnosticHeaderPrefix string `json:"diagnosticHeaderPrefix" yaml:"diagnosticHeaderPrefix"`

	// UpstreamTimeout bounds the forwarded call. Zero means the
	// transport's own timeouts are the only bound.
	UpstreamTimeout Duration `json:"upstreamTimeout" yaml:"upstreamTimeout"`
}

// SecretsConfig holds secret provider settings.
type SecretsConfig struct {
	// Provider selects the backend: env, local, or vault.
	Provider string `json:"provider" yaml:"provider"`

	// EnvPrefix is the prefix for the env provider.
	EnvPrefix string `json:"envPrefix" yaml:"envPrefix"`

	// LocalPath is the base directory for the local provider.
	LocalPath string `json:"localPath" yaml:"localPath"`

	Vault VaultConfig `json:"vault" yaml:"vault"`
}

// VaultConfig holds HashiCorp Vault client settings.
type VaultConfig struct {
	Address       string   `json:"address" yaml:"address"`
	Token         string   `json:"token" yaml:"token"`
	Namespace     string   `json:"namespace" yaml:"namespace"`
	Mount         string   `json:"mount" yaml:"mount"`
	Timeout       Duration `json:"timeout" yaml:"timeout"`
	TLSSkipVerify bool     `json:"tlsSkipVerify" yaml:"tlsSkipVerify"`
}

// ObservabilityConfig holds logging and tracing settings.
type ObservabilityConfig struct {
	LogLevel  string        `json:"logLevel" yaml:"logLevel"`
	LogFormat string        `json:"logFormat" yaml:"logFormat"`
	LogOutput string        `json:"logOutput" yaml:"logOutput"`
	Tracing   TracingConfig `json:"tracing" yaml:"tracing"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	Endpoint       string  `json:"endpoint" yaml:"endpoint"`
	SampleRate     float64 `json:"sampleRate" yaml:"sampleRate"`
	ServiceName    string  `json:"serviceName" yaml:"serviceName"`
	ServiceVersion string  `json:"serviceVersion" yaml:"serviceVersion"`
	Insecure       bool    `json:"insecure" yaml:"insecure"`
}

// Target describes one physical backend API instance.
type Target struct {
	// TenantID is the directory/tenant identifier used for lookup and for
	// the token endpoint URL.
	TenantID string `json:"tenantId" yaml:"tenantId"`

	// TenantName is the human-friendly tenant name, also usable for lookup.
	TenantName string `json:"tenantName" yaml:"tenantName"`

	// Class distinguishes production from staging instances
	// (primary or staging).
	Class string `json:"class" yaml:"class"`

	// BaseURI is the backend base address; the inbound path and query are
	// appended verbatim.
	BaseURI string `json:"baseUri" yaml:"baseUri"`

	// ClientID identifies the proxy to the OAuth2 authority.
	ClientID string `json:"clientId" yaml:"clientId"`

	// ClientSecret is a plaintext secret. Intended for development only;
	// production configs should use ClientSecretEncrypted.
	ClientSecret string `json:"clientSecret" yaml:"clientSecret"`

	// ClientSecretEncrypted is the base64 ChaCha20-Poly1305 sealed secret
	// (nonce prepended to the ciphertext).
	ClientSecretEncrypted string `json:"clientSecretEncrypted" yaml:"clientSecretEncrypted"`

	// SecretKeyRef is the secret-provider reference resolving to the
	// 32-byte decryption key, hex or base64 encoded.
	SecretKeyRef string `json:"secretKeyRef" yaml:"secretKeyRef"`

	// ReadGroup members may issue GET requests.
	ReadGroup string `json:"readGroup" yaml:"readGroup"`

	// ReadWriteGroup members may issue any verb.
	ReadWriteGroup string `json:"readWriteGroup" yaml:"readWriteGroup"`
}

// ApplyDefaults fills in zero-valued settings with defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = DefaultListenAddress
	}
	if c.Server.MetricsAddress == "" {
		c.Server.MetricsAddress = DefaultMetricsAddress
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if c.Auth.Host == "" {
		c.Auth.Host = DefaultAuthHost
	}
	if c.Auth.ExpiryBuffer == 0 {
		c.Auth.ExpiryBuffer = Duration(DefaultExpiryBuffer)
	}
	if c.Auth.Timeout == 0 {
		c.Auth.Timeout = Duration(30 * time.Second)
	}
	if c.Proxy.DiagnosticHeaderPrefix == "" {
		c.Proxy.DiagnosticHeaderPrefix = DefaultHeaderPrefix
	}
	if c.Secrets.Provider == "" {
		c.Secrets.Provider = "env"
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	if c.Observability.LogFormat == "" {
		c.Observability.LogFormat = "json"
	}
}
