// Package forward executes outbound calls against resolved backend
// targets: it attaches the bearer credential, copies the body, executes,
// and maps the backend's response or failure back into an outward
// response.
package forward

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/passage-gw/passage/internal/authorize"
	"github.com/passage-gw/passage/internal/observability"
	"github.com/passage-gw/passage/internal/registry"
	"github.com/passage-gw/passage/internal/telemetry"
)

// CorrelationHeader carries the client-supplied correlation identifier
// through to the backend and back to telemetry.
const CorrelationHeader = "X-Correlation-Id"

// Forwarder executes proxied calls. No retry, no circuit breaking: every
// failure surfaces to the caller as a completed HTTP-shaped response.
type Forwarder struct {
	gate         *authorize.Gate
	httpClient   *http.Client
	headerPrefix string
	logger       observability.Logger
	telemetry    telemetry.Recorder
	tracer       *observability.Tracer
}

// ForwarderOption is a functional option for configuring the forwarder.
type ForwarderOption func(*Forwarder)

// WithLogger sets the logger for the forwarder.
func WithLogger(logger observability.Logger) ForwarderOption {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithHTTPClient sets the HTTP client used for upstream calls.
func WithHTTPClient(client *http.Client) ForwarderOption {
	return func(f *Forwarder) {
		f.httpClient = client
	}
}

// WithTelemetry sets the telemetry recorder.
func WithTelemetry(recorder telemetry.Recorder) ForwarderOption {
	return func(f *Forwarder) {
		f.telemetry = recorder
	}
}

// WithTracer sets the tracer for upstream call spans.
func WithTracer(tracer *observability.Tracer) ForwarderOption {
	return func(f *Forwarder) {
		f.tracer = tracer
	}
}

// WithDiagnosticHeaderPrefix sets the backend diagnostic header prefix
// whose response headers are copied through to the caller.
func WithDiagnosticHeaderPrefix(prefix string) ForwarderOption {
	return func(f *Forwarder) {
		f.headerPrefix = strings.ToLower(prefix)
	}
}

// NewForwarder creates a request forwarder.
func NewForwarder(gate *authorize.Gate, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		gate:         gate,
		httpClient:   http.DefaultClient,
		headerPrefix: "x-ms-",
		logger:       observability.NopLogger(),
		telemetry:    telemetry.NopRecorder{},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Forward executes one proxied request against the resolved target and
// always returns a completed outward response.
func (f *Forwarder) Forward(
	ctx context.Context,
	target *registry.Target,
	method, pathAndQuery string,
	principal authorize.Principal,
	body []byte,
) *Response {
	start := time.Now()

	resp, forwarded := f.forward(ctx, target, method, pathAndQuery, principal, body)

	f.telemetry.RecordRequest(telemetry.Fact{
		Tenant:        target.TenantID(),
		Class:         string(target.Class()),
		Method:        method,
		Path:          pathAndQuery,
		Status:        resp.Status,
		Duration:      time.Since(start),
		CorrelationID: observability.CorrelationIDFromContext(ctx),
		Forwarded:     forwarded,
	})

	return resp
}

// forward returns the outward response and whether the backend was
// actually called.
func (f *Forwarder) forward(
	ctx context.Context,
	target *registry.Target,
	method, pathAndQuery string,
	principal authorize.Principal,
	body []byte,
) (*Response, bool) {
	// Fail fast: no upstream call is attempted for a denied request.
	decision := f.gate.CheckPermission(principal, method, target)
	if !decision.Allowed {
		return NewErrorResponse(http.StatusUnauthorized, CodeUnauthorized, decision.Reason), false
	}

	token, err := target.Credentials().Token(ctx)
	if err != nil {
		f.logger.Error("token acquisition failed",
			observability.String("tenant", target.TenantID()),
			observability.Error(err),
		)
		return mapTokenError(err), false
	}

	req, err := f.buildRequest(ctx, target, method, pathAndQuery, token, body)
	if err != nil {
		f.logger.Error("failed to build upstream request",
			observability.String("tenant", target.TenantID()),
			observability.Error(err),
		)
		return NewErrorResponse(http.StatusInternalServerError, CodeInternalError,
			"failed to build upstream request"), false
	}

	ctx, span := f.startSpan(ctx, target, method)
	upstream, err := f.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		// Pure transport failure: no response was obtained at all.
		f.endSpan(span, 0, err)
		f.logger.Error("upstream transport failure",
			observability.String("tenant", target.TenantID()),
			observability.String("baseUri", target.BaseURI()),
			observability.Error(err),
		)
		return NewErrorResponse(http.StatusInternalServerError, CodeInternalError,
			"failed to reach backend"), false
	}
	defer upstream.Body.Close()

	respBody, err := io.ReadAll(upstream.Body)
	if err != nil {
		f.endSpan(span, upstream.StatusCode, err)
		f.logger.Error("failed to read upstream response",
			observability.String("tenant", target.TenantID()),
			observability.Error(err),
		)
		return NewErrorResponse(http.StatusInternalServerError, CodeInternalError,
			"failed to read backend response"), false
	}
	f.endSpan(span, upstream.StatusCode, nil)

	// Backend-reported errors pass through unchanged: the caller sees
	// exactly what the backend would have produced directly.
	return f.mapResponse(upstream, respBody), true
}

// buildRequest constructs the outbound request for the target.
func (f *Forwarder) buildRequest(
	ctx context.Context,
	target *registry.Target,
	method, pathAndQuery, token string,
	body []byte,
) (*http.Request, error) {
	uri := target.BaseURI() + pathAndQuery

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "bearer "+token)
	if len(body) > 0 {
		req.Header.Set("Content-Type", ContentTypeJSON)
		req.ContentLength = int64(len(body))
	}
	if id := observability.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(CorrelationHeader, id)
	}

	return req, nil
}

// mapResponse copies status, diagnostic headers, and body verbatim.
func (f *Forwarder) mapResponse(upstream *http.Response, body []byte) *Response {
	header := http.Header{}
	for name, values := range upstream.Header {
		if !strings.HasPrefix(strings.ToLower(name), f.headerPrefix) {
			continue
		}
		for _, v := range values {
			header.Add(name, v)
		}
	}

	if ct := upstream.Header.Get("Content-Type"); ct != "" && len(body) > 0 {
		header.Set("Content-Type", ct)
	}

	resp := &Response{
		Status: upstream.StatusCode,
		Header: header,
	}
	// The body is omitted entirely when empty so verbs like DELETE keep
	// their no-content success shape.
	if len(body) > 0 {
		resp.Body = body
	}
	return resp
}

func (f *Forwarder) startSpan(ctx context.Context, target *registry.Target, method string) (context.Context, trace.Span) {
	if f.tracer == nil {
		return ctx, nil
	}
	return f.tracer.Start(ctx, "forward",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("proxy.tenant", target.TenantID()),
			attribute.String("proxy.class", string(target.Class())),
			attribute.String("http.method", method),
		),
	)
}

func (f *Forwarder) endSpan(span trace.Span, status int, err error) {
	if span == nil {
		return
	}
	if status > 0 {
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
