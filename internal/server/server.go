// Package server provides the inbound HTTP surface of the proxy: one
// generic forwarding route plus health endpoints. All routing decisions
// beyond the path prefix live in the registry and forwarder.
package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/passage-gw/passage/internal/config"
	"github.com/passage-gw/passage/internal/forward"
	"github.com/passage-gw/passage/internal/observability"
	"github.com/passage-gw/passage/internal/registry"
	"github.com/passage-gw/passage/internal/telemetry"
)

// ginModeOnce ensures gin.SetMode is only called once.
var ginModeOnce sync.Once

// Server is the inbound HTTP server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	registry   atomic.Pointer[registry.Registry]
	forwarder  *forward.Forwarder
	telemetry  telemetry.Recorder
	logger     observability.Logger
	cfg        config.ServerConfig

	mu      sync.Mutex
	running bool
}

// ServerOption is a functional option for configuring the server.
type ServerOption func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(logger observability.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTelemetry sets the telemetry recorder used for requests answered
// before a target is resolved.
func WithTelemetry(recorder telemetry.Recorder) ServerOption {
	return func(s *Server) {
		s.telemetry = recorder
	}
}

// New creates the inbound server.
func New(cfg config.ServerConfig, reg *registry.Registry, fwd *forward.Forwarder, opts ...ServerOption) *Server {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		engine:    gin.New(),
		forwarder: fwd,
		telemetry: telemetry.NopRecorder{},
		logger:    observability.NopLogger(),
		cfg:       cfg,
	}
	s.registry.Store(reg)

	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(s.correlationMiddleware())

	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.GET("/readyz", s.handleReadyz)

	api := s.engine.Group("/api")
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete} {
		api.Handle(method, "/*path", s.handleProxy)
	}

	return s
}

// UpdateRegistry swaps in a freshly built registry after a configuration
// reload. In-flight requests keep the registry they resolved against.
func (s *Server) UpdateRegistry(reg *registry.Registry) {
	s.registry.Store(reg)
	s.logger.Info("endpoint registry updated",
		observability.Int("tenants", reg.Tenants()),
	)
}

// Engine returns the underlying gin engine, for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start begins serving. It blocks until the listener fails or Stop is
// called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true

	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout.Duration(),
		WriteTimeout: s.cfg.WriteTimeout.Duration(),
		IdleTimeout:  s.cfg.IdleTimeout.Duration(),
	}
	s.mu.Unlock()

	s.logger.Info("http server listening",
		observability.String("address", s.cfg.ListenAddress),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.httpServer == nil {
		return nil
	}
	s.running = false

	timeout := s.cfg.ShutdownTimeout.Duration()
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReadyz(c *gin.Context) {
	reg := s.registry.Load()
	if reg == nil || reg.Tenants() == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "no tenants configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "tenants": reg.Tenants()})
}
