package registry

import (
	"golang.org/x/text/cases"

	"github.com/passage-gw/passage/internal/observability"
)

// Registry maps tenant identifiers and tenant friendly names to tenant
// pools. It is built once from configuration and read-only afterwards;
// configuration reloads build a fresh Registry and swap it in whole.
type Registry struct {
	byID            map[string]*TenantPool
	byName          map[string]*TenantPool
	defaultTenantID string
	logger          observability.Logger
	metrics         *observability.Metrics
}

// Option is a functional option for configuring the registry.
type Option func(*Registry)

// WithLogger sets the logger for the registry.
func WithLogger(logger observability.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics for the registry.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(r *Registry) {
		r.metrics = metrics
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		byID:   make(map[string]*TenantPool),
		byName: make(map[string]*TenantPool),
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Configure groups the flat target list into tenant pools, registering
// each pool under both the tenant id and the tenant friendly name.
// Multiple targets for the same tenant and class append to the same ring,
// growing the round robin. Lookup keys are case-folded.
func (r *Registry) Configure(targets []*Target, defaultTenantID string) {
	for _, t := range targets {
		idKey := foldKey(t.TenantID())
		nameKey := foldKey(t.TenantName())

		pool, ok := r.byID[idKey]
		if !ok {
			pool = NewTenantPool(t.TenantID())
			r.byID[idKey] = pool
		}
		pool.Add(t)

		// Both tables share the same pool instance so the round robin
		// cursor is common to id and name lookups.
		r.byName[nameKey] = pool

		if r.metrics != nil {
			r.metrics.SetPoolTargets(t.TenantID(), string(t.Class()), pool.Len(t.Class()))
		}

		r.logger.Info("registered backend target",
			observability.String("tenant", t.TenantID()),
			observability.String("tenantName", t.TenantName()),
			observability.String("class", string(t.Class())),
			observability.String("baseUri", t.BaseURI()),
		)
	}

	if defaultTenantID != "" {
		r.defaultTenantID = foldKey(defaultTenantID)
	}
}

// Resolve resolves the tenant context to a concrete backend target.
// Exactly one of tenantID and tenantName may be supplied; with neither,
// the configured default tenant is used.
func (r *Registry) Resolve(tenantID, tenantName string, class TargetClass) (*Target, error) {
	if tenantID != "" && tenantName != "" {
		return nil, ErrConfigurationConflict
	}

	var pool *TenantPool
	switch {
	case tenantID != "":
		pool = r.byID[foldKey(tenantID)]
		if pool == nil {
			return nil, &UnknownTenantError{Identifier: tenantID}
		}
	case tenantName != "":
		pool = r.byName[foldKey(tenantName)]
		if pool == nil {
			return nil, &UnknownTenantError{Identifier: tenantName}
		}
	default:
		if r.defaultTenantID == "" {
			return nil, ErrNoDefaultTenant
		}
		pool = r.byID[r.defaultTenantID]
		if pool == nil {
			return nil, &UnknownTenantError{Identifier: r.defaultTenantID}
		}
	}

	return pool.Next(class)
}

// Tenants returns the number of registered tenants.
func (r *Registry) Tenants() int {
	return len(r.byID)
}

// foldKey normalizes a lookup key for case-insensitive matching.
// A fresh Caser per call: Casers carry transformer state and are not safe
// for concurrent use.
func foldKey(s string) string {
	return cases.Fold().String(s)
}
