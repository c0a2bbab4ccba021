// Package authorize decides whether a caller's group memberships permit
// the requested HTTP verb against a backend target. The policy is
// verb-only: read versus read-write, with no per-resource distinction.
package authorize

import (
	"fmt"
	"net/http"

	"github.com/passage-gw/passage/internal/observability"
	"github.com/passage-gw/passage/internal/registry"
)

// Principal is the calling identity as asserted by the trusted front.
type Principal struct {
	// Name is the caller's account name, used in denial messages.
	Name string

	// Groups is the caller's group memberships.
	Groups []string
}

// IsMember reports whether the principal belongs to the named group.
func (p Principal) IsMember(group string) bool {
	for _, g := range p.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// Decision is the outcome of a permission check.
type Decision struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Reason explains a denial, naming the required group.
	Reason string

	// RequiredGroup is the group whose membership was missing.
	RequiredGroup string
}

// Recorder receives denial facts. *observability.Metrics satisfies it.
type Recorder interface {
	RecordAuthzDenial(tenant, group string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthzDenial(string, string) {}

// Gate checks verb permissions against a target's read and read-write
// groups.
type Gate struct {
	logger   observability.Logger
	recorder Recorder
}

// GateOption is a functional option for configuring the gate.
type GateOption func(*Gate)

// WithLogger sets the logger for the gate.
func WithLogger(logger observability.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithRecorder sets the metrics recorder for the gate.
func WithRecorder(recorder Recorder) GateOption {
	return func(g *Gate) {
		g.recorder = recorder
	}
}

// NewGate creates an authorization gate.
func NewGate(opts ...GateOption) *Gate {
	g := &Gate{
		logger:   observability.NopLogger(),
		recorder: nopRecorder{},
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// CheckPermission decides whether the principal may issue the verb against
// the target. GET is permitted to members of the read group or the
// read-write group; every other verb requires the read-write group.
func (g *Gate) CheckPermission(principal Principal, verb string, target *registry.Target) Decision {
	if verb == http.MethodGet {
		if principal.IsMember(target.ReadGroup()) || principal.IsMember(target.ReadWriteGroup()) {
			return Decision{Allowed: true}
		}
		return g.deny(principal, verb, target, target.ReadGroup())
	}

	if principal.IsMember(target.ReadWriteGroup()) {
		return Decision{Allowed: true}
	}
	return g.deny(principal, verb, target, target.ReadWriteGroup())
}

func (g *Gate) deny(principal Principal, verb string, target *registry.Target, group string) Decision {
	reason := fmt.Sprintf("user %q is not a member of group %q required for %s", principal.Name, group, verb)

	g.recorder.RecordAuthzDenial(target.TenantID(), group)
	g.logger.Debug("authorization denied",
		observability.String("user", principal.Name),
		observability.String("verb", verb),
		observability.String("tenant", target.TenantID()),
		observability.String("requiredGroup", group),
	)

	return Decision{
		Allowed:       false,
		Reason:        reason,
		RequiredGroup: group,
	}
}
