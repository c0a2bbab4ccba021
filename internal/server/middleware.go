package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/passage-gw/passage/internal/authorize"
	"github.com/passage-gw/passage/internal/forward"
	"github.com/passage-gw/passage/internal/observability"
)

// Inbound request headers.
const (
	// HeaderTenantID selects the tenant by directory identifier.
	HeaderTenantID = "X-Tenant-Id"

	// HeaderTenantName selects the tenant by friendly name.
	HeaderTenantName = "X-Tenant-Name"

	// HeaderUseStaging requests the staging backend class.
	HeaderUseStaging = "X-Use-Staging"

	// HeaderAuthUser carries the authenticated account name, asserted by
	// the trusted authentication front.
	HeaderAuthUser = "X-Auth-User"

	// HeaderAuthGroups carries the comma-separated group memberships.
	HeaderAuthGroups = "X-Auth-Groups"
)

// correlationMiddleware ensures every request carries a correlation id,
// generating one when the caller did not supply it, and echoes it on the
// response.
func (s *Server) correlationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(forward.CorrelationHeader)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := observability.ContextWithCorrelationID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(forward.CorrelationHeader, id)

		c.Next()
	}
}

// principalFrom extracts the calling identity from the trusted headers.
func principalFrom(c *gin.Context) authorize.Principal {
	p := authorize.Principal{Name: c.GetHeader(HeaderAuthUser)}

	raw := c.GetHeader(HeaderAuthGroups)
	if raw == "" {
		return p
	}
	for _, g := range strings.Split(raw, ",") {
		g = strings.TrimSpace(g)
		if g != "" {
			p.Groups = append(p.Groups, g)
		}
	}
	return p
}

// wantsStaging reports whether the request asked for the staging class.
func wantsStaging(c *gin.Context) bool {
	switch strings.ToLower(c.GetHeader(HeaderUseStaging)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
