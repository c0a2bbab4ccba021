package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/passage-gw/passage/internal/forward"
	"github.com/passage-gw/passage/internal/observability"
	"github.com/passage-gw/passage/internal/registry"
	"github.com/passage-gw/passage/internal/telemetry"
)

// handleProxy resolves the tenant context from the request headers and
// hands the call to the forwarder. Resolution failures are answered
// locally without touching any backend.
func (s *Server) handleProxy(c *gin.Context) {
	start := time.Now()

	tenantID := c.GetHeader(HeaderTenantID)
	tenantName := c.GetHeader(HeaderTenantName)

	class := registry.ClassPrimary
	if wantsStaging(c) {
		class = registry.ClassStaging
	}

	reg := s.registry.Load()
	target, err := reg.Resolve(tenantID, tenantName, class)
	if err != nil {
		s.logger.Debug("tenant resolution failed",
			observability.String("tenantId", tenantID),
			observability.String("tenantName", tenantName),
			observability.String("class", string(class)),
			observability.Error(err),
		)
		resp := forward.MapResolveError(err)
		s.telemetry.RecordRequest(telemetry.Fact{
			Method:        c.Request.Method,
			Path:          c.Param("path"),
			Status:        resp.Status,
			Duration:      time.Since(start),
			CorrelationID: observability.CorrelationIDFromContext(c.Request.Context()),
		})
		writeResponse(c, resp)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		resp := forward.NewErrorResponse(http.StatusBadRequest, forward.CodeBadRequest,
			"failed to read request body")
		writeResponse(c, resp)
		return
	}

	pathAndQuery := c.Param("path")
	if raw := c.Request.URL.RawQuery; raw != "" {
		pathAndQuery += "?" + raw
	}

	resp := s.forwarder.Forward(
		c.Request.Context(),
		target,
		c.Request.Method,
		pathAndQuery,
		principalFrom(c),
		body,
	)
	writeResponse(c, resp)
}

// writeResponse renders a forward.Response onto the gin context.
func writeResponse(c *gin.Context, resp *forward.Response) {
	for name, values := range resp.Header {
		for _, v := range values {
			c.Writer.Header().Add(name, v)
		}
	}
	c.Writer.WriteHeader(resp.Status)
	if len(resp.Body) > 0 {
		_, _ = c.Writer.Write(resp.Body)
	}
}
