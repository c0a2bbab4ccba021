// Package credential owns the cached bearer token for each backend
// target and refreshes it through the OAuth2 client-credentials flow.
package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/passage-gw/passage/internal/observability"
)

// DefaultExpiryBuffer is subtracted from the upstream expires_in so the
// proxy never presents a token the authority already considers expired.
const DefaultExpiryBuffer = 90 * time.Second

// DefaultExchangeTimeout bounds the token exchange call.
const DefaultExchangeTimeout = 30 * time.Second

// SecretSource resolves the client secret lazily. The secret stays
// encrypted at rest and is only materialized when a refresh needs it.
type SecretSource func(ctx context.Context) (string, error)

// StaticSecret returns a SecretSource for an already-resolved secret.
func StaticSecret(secret string) SecretSource {
	return func(context.Context) (string, error) {
		return secret, nil
	}
}

// Config describes one target's token acquisition parameters.
type Config struct {
	// TenantID is used for the token endpoint URL and for metrics labels.
	TenantID string

	// AuthHost is the base URL of the OAuth2 authority, e.g.
	// https://login.windows.net.
	AuthHost string

	// ClientID identifies the proxy to the authority.
	ClientID string

	// Secret resolves the client secret.
	Secret SecretSource

	// Resource is the audience the token is requested for, the target's
	// base URI.
	Resource string

	// ExpiryBuffer shortens the cached validity window. Zero means
	// DefaultExpiryBuffer.
	ExpiryBuffer time.Duration
}

// Recorder receives token cache facts. *observability.Metrics satisfies it.
type Recorder interface {
	RecordTokenRefresh(tenant, result string)
	RecordTokenCacheHit()
	RecordTokenCacheMiss()
}

// nopRecorder discards all facts.
type nopRecorder struct{}

func (nopRecorder) RecordTokenRefresh(string, string) {}
func (nopRecorder) RecordTokenCacheHit()              {}
func (nopRecorder) RecordTokenCacheMiss()             {}

// Cache holds one cached bearer token and its expiry for a single backend
// target. The write lock is held across the token exchange by design: it
// guarantees at most one in-flight refresh per target, with all concurrent
// callers suspending until the holder completes and then observing the
// refreshed value together.
type Cache struct {
	cfg        Config
	httpClient *http.Client
	logger     observability.Logger
	recorder   Recorder
	now        func() time.Time

	mu         sync.RWMutex
	token      string
	validUntil time.Time
	populated  bool
}

// CacheOption is a functional option for configuring the cache.
type CacheOption func(*Cache)

// WithLogger sets the logger for the cache.
func WithLogger(logger observability.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithRecorder sets the metrics recorder for the cache.
func WithRecorder(recorder Recorder) CacheOption {
	return func(c *Cache) {
		c.recorder = recorder
	}
}

// WithHTTPClient sets the HTTP client used for the token exchange.
func WithHTTPClient(client *http.Client) CacheOption {
	return func(c *Cache) {
		c.httpClient = client
	}
}

// WithClock sets the time source. Tests use this to simulate expiry.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates a credential cache for one backend target.
func NewCache(cfg Config, opts ...CacheOption) (*Cache, error) {
	if cfg.TenantID == "" {
		return nil, fmt.Errorf("credential: tenant id is required")
	}
	if cfg.AuthHost == "" {
		return nil, fmt.Errorf("credential: auth host is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("credential: client id is required")
	}
	if cfg.Secret == nil {
		return nil, fmt.Errorf("credential: secret source is required")
	}
	if cfg.ExpiryBuffer == 0 {
		cfg.ExpiryBuffer = DefaultExpiryBuffer
	}

	c := &Cache{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: DefaultExchangeTimeout},
		logger:     observability.NopLogger(),
		recorder:   nopRecorder{},
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With(
		observability.String("tenant", cfg.TenantID),
	)

	return c, nil
}

// Token returns a valid bearer token, refreshing it when the cached one
// has expired or was never obtained. A failed refresh leaves the previous
// token and expiry untouched so a later call can retry.
func (c *Cache) Token(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.populated && c.now().Before(c.validUntil) {
		token := c.token
		c.mu.RUnlock()
		c.recorder.RecordTokenCacheHit()
		return token, nil
	}
	c.mu.RUnlock()

	c.recorder.RecordTokenCacheMiss()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while this one waited for the
	// write lock.
	if c.populated && c.now().Before(c.validUntil) {
		return c.token, nil
	}

	// The validity window is anchored to the clock sampled before the
	// exchange starts, not after it returns.
	refreshStart := c.now()

	token, expiresIn, err := c.exchange(ctx)
	if err != nil {
		c.recorder.RecordTokenRefresh(c.cfg.TenantID, "error")
		return "", err
	}

	c.token = token
	c.validUntil = refreshStart.Add(expiresIn - c.cfg.ExpiryBuffer)
	c.populated = true

	c.recorder.RecordTokenRefresh(c.cfg.TenantID, "success")
	c.logger.Debug("bearer token refreshed",
		observability.Time("validUntil", c.validUntil),
	)

	return token, nil
}

// Populated reports whether a token was ever successfully obtained. A
// bootstrap cache is distinguished from a merely-expired one so the very
// first call always attempts a real refresh.
func (c *Cache) Populated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.populated
}

// exchange performs the OAuth2 client-credentials exchange. Called with
// the write lock held.
func (c *Cache) exchange(ctx context.Context) (string, time.Duration, error) {
	secret, err := c.cfg.Secret(ctx)
	if err != nil {
		return "", 0, &AcquisitionError{
			TenantID: c.cfg.TenantID,
			Message:  "failed to resolve client secret",
			Cause:    err,
		}
	}

	tokenURL := strings.TrimRight(c.cfg.AuthHost, "/") + "/" + c.cfg.TenantID + "/oauth2/token"

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", secret)
	form.Set("resource", c.cfg.Resource)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, &AcquisitionError{
			TenantID: c.cfg.TenantID,
			Message:  "failed to build token request",
			Cause:    err,
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, &AcquisitionError{
			TenantID: c.cfg.TenantID,
			Message:  "token endpoint unreachable",
			Cause:    err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", 0, &AcquisitionError{
			TenantID: c.cfg.TenantID,
			Message:  fmt.Sprintf("token endpoint returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", 0, &AcquisitionError{
			TenantID: c.cfg.TenantID,
			Message:  "failed to parse token response",
			Cause:    err,
		}
	}
	if tokenResp.AccessToken == "" {
		return "", 0, &AcquisitionError{
			TenantID: c.cfg.TenantID,
			Message:  "access_token not found in response",
		}
	}

	expiresIn := time.Duration(tokenResp.ExpiresIn) * time.Second
	if tokenResp.ExpiresIn <= 0 {
		expiresIn, err = c.expiryFromClaims(tokenResp.AccessToken)
		if err != nil {
			return "", 0, &AcquisitionError{
				TenantID: c.cfg.TenantID,
				Message:  "response carries neither expires_in nor a parsable exp claim",
				Cause:    err,
			}
		}
	}

	return tokenResp.AccessToken, expiresIn, nil
}

// expiryFromClaims falls back to the token's exp claim when the response
// omits expires_in. The token is opaque to the proxy, so no signature
// verification is attempted.
func (c *Cache) expiryFromClaims(token string) (time.Duration, error) {
	parsed, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return 0, err
	}
	exp := parsed.Expiration()
	if exp.IsZero() {
		return 0, fmt.Errorf("no exp claim present")
	}
	remaining := exp.Sub(c.now())
	if remaining <= 0 {
		return 0, fmt.Errorf("token already expired at %s", exp)
	}
	return remaining, nil
}
