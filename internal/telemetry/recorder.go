// Package telemetry receives structured facts about completed requests.
// The proxy core only depends on the Recorder interface; the concrete
// recorder here logs each fact and feeds the Prometheus metrics.
package telemetry

import (
	"time"

	"github.com/passage-gw/passage/internal/observability"
)

// Fact describes one completed request as seen from the outside: the
// outward status is recorded whether the backend was reached or the
// response was synthesized locally.
type Fact struct {
	Tenant        string
	Class         string
	Method        string
	Path          string
	Status        int
	Duration      time.Duration
	CorrelationID string
	Forwarded     bool
}

// Recorder receives one fact per completed request.
type Recorder interface {
	RecordRequest(fact Fact)
}

// NopRecorder discards all facts.
type NopRecorder struct{}

// RecordRequest discards the fact.
func (NopRecorder) RecordRequest(Fact) {}

// recorder logs facts and updates metrics.
type recorder struct {
	logger  observability.Logger
	metrics *observability.Metrics
}

// NewRecorder creates a recorder backed by the logger and metrics.
func NewRecorder(logger observability.Logger, metrics *observability.Metrics) Recorder {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &recorder{logger: logger, metrics: metrics}
}

// RecordRequest records one completed request.
func (r *recorder) RecordRequest(fact Fact) {
	if r.metrics != nil {
		tenant := fact.Tenant
		if tenant == "" {
			tenant = "unresolved"
		}
		class := fact.Class
		if class == "" {
			class = "none"
		}
		r.metrics.RecordRequest(tenant, class, fact.Method, fact.Status, fact.Duration)
	}

	r.logger.Info("request completed",
		observability.String("tenant", fact.Tenant),
		observability.String("class", fact.Class),
		observability.String("method", fact.Method),
		observability.String("path", fact.Path),
		observability.Int("status", fact.Status),
		observability.Duration("duration", fact.Duration),
		observability.String("correlation_id", fact.CorrelationID),
		observability.Bool("forwarded", fact.Forwarded),
	)
}
