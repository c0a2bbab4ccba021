package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/passage-gw/passage/internal/authorize"
	"github.com/passage-gw/passage/internal/config"
	"github.com/passage-gw/passage/internal/credential"
	"github.com/passage-gw/passage/internal/forward"
	"github.com/passage-gw/passage/internal/observability"
	"github.com/passage-gw/passage/internal/registry"
	"github.com/passage-gw/passage/internal/secrets"
	"github.com/passage-gw/passage/internal/server"
	"github.com/passage-gw/passage/internal/telemetry"
)

// application holds all application components.
type application struct {
	server    *server.Server
	secrets   secrets.Provider
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	telemetry telemetry.Recorder
	logger    observability.Logger
	config    *config.Config
}

// initApplication initializes all application components.
func initApplication(cfg *config.Config, logger observability.Logger) (*application, error) {
	metrics := observability.NewMetrics("passage")
	metrics.SetBuildInfo(version, gitCommit)

	tracer, err := initTracer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	provider, err := secrets.NewProvider(cfg.Secrets, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider: %w", err)
	}

	reg, err := buildRegistry(cfg, provider, metrics, logger)
	if err != nil {
		return nil, err
	}

	recorder := telemetry.NewRecorder(logger, metrics)

	gate := authorize.NewGate(
		authorize.WithLogger(logger),
		authorize.WithRecorder(metrics),
	)

	upstreamClient := &http.Client{}
	if cfg.Proxy.UpstreamTimeout > 0 {
		upstreamClient.Timeout = cfg.Proxy.UpstreamTimeout.Duration()
	}

	fwd := forward.NewForwarder(gate,
		forward.WithLogger(logger),
		forward.WithHTTPClient(upstreamClient),
		forward.WithTelemetry(recorder),
		forward.WithTracer(tracer),
		forward.WithDiagnosticHeaderPrefix(cfg.Proxy.DiagnosticHeaderPrefix),
	)

	srv := server.New(cfg.Server, reg, fwd,
		server.WithLogger(logger),
		server.WithTelemetry(recorder),
	)

	return &application{
		server:    srv,
		secrets:   provider,
		metrics:   metrics,
		tracer:    tracer,
		telemetry: recorder,
		logger:    logger,
		config:    cfg,
	}, nil
}

// initTracer initializes the tracer from configuration.
func initTracer(cfg *config.Config) (*observability.Tracer, error) {
	tracing := cfg.Observability.Tracing

	serviceName := tracing.ServiceName
	if serviceName == "" {
		serviceName = "passage"
	}
	serviceVersion := tracing.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}

	return observability.NewTracer(observability.TracerConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		OTLPEndpoint:   tracing.Endpoint,
		SamplingRate:   tracing.SampleRate,
		Insecure:       tracing.Insecure,
		Enabled:        tracing.Enabled,
	})
}

// buildRegistry constructs the target registry from configuration: one
// credential cache per target, with the client secret resolved lazily
// through the secrets provider.
func buildRegistry(
	cfg *config.Config,
	provider secrets.Provider,
	metrics *observability.Metrics,
	logger observability.Logger,
) (*registry.Registry, error) {
	targets := make([]*registry.Target, 0, len(cfg.Targets))

	for _, tc := range cfg.Targets {
		source, err := secretSource(tc, provider)
		if err != nil {
			return nil, fmt.Errorf("target %s/%s: %w", tc.TenantID, tc.Class, err)
		}

		cache, err := credential.NewCache(credential.Config{
			TenantID:     tc.TenantID,
			AuthHost:     cfg.Auth.Host,
			ClientID:     tc.ClientID,
			Secret:       source,
			Resource:     tc.BaseURI,
			ExpiryBuffer: cfg.Auth.ExpiryBuffer.Duration(),
		},
			credential.WithLogger(logger),
			credential.WithRecorder(metrics),
			credential.WithHTTPClient(&http.Client{Timeout: cfg.Auth.Timeout.Duration()}),
		)
		if err != nil {
			return nil, fmt.Errorf("target %s/%s: %w", tc.TenantID, tc.Class, err)
		}

		target, err := registry.NewTarget(tc, cache)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}

	reg := registry.New(
		registry.WithLogger(logger),
		registry.WithMetrics(metrics),
	)
	reg.Configure(targets, cfg.Proxy.DefaultTenant)

	return reg, nil
}

// secretSource builds the lazy secret resolver for one target. Plaintext
// secrets are used as-is; encrypted secrets are opened on demand with the
// key fetched from the secrets provider, so key material never sits in
// the descriptor.
func secretSource(tc config.Target, provider secrets.Provider) (credential.SecretSource, error) {
	if tc.ClientSecret != "" {
		return credential.StaticSecret(tc.ClientSecret), nil
	}

	if tc.ClientSecretEncrypted == "" || tc.SecretKeyRef == "" {
		return nil, fmt.Errorf("either clientSecret or clientSecretEncrypted with secretKeyRef is required")
	}

	sealed := tc.ClientSecretEncrypted
	ref := tc.SecretKeyRef
	return func(ctx context.Context) (string, error) {
		encodedKey, err := provider.Resolve(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("failed to resolve secret key %q: %w", ref, err)
		}
		key, err := secrets.DecodeKey(encodedKey)
		if err != nil {
			return "", err
		}
		return secrets.Decrypt(sealed, key)
	}, nil
}

// reloadTargets rebuilds the registry from a freshly loaded configuration
// and swaps it into the running server. Credential caches start empty; the
// first request per target performs a fresh token exchange.
func (app *application) reloadTargets(cfg *config.Config) error {
	reg, err := buildRegistry(cfg, app.secrets, app.metrics, app.logger)
	if err != nil {
		return err
	}
	app.server.UpdateRegistry(reg)
	return nil
}

// startMetricsServer serves Prometheus metrics on the dedicated address.
func (app *application) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())

	srv := &http.Server{
		Addr:              app.config.Server.MetricsAddress,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	app.logger.Info("starting metrics server",
		observability.String("address", app.config.Server.MetricsAddress),
	)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		app.logger.Error("metrics server error", observability.Error(err))
	}
}
