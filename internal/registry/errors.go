package registry

import (
	"errors"
	"fmt"
)

// Sentinel errors for tenant resolution.
var (
	// ErrConfigurationConflict indicates both a tenant id and a tenant
	// name were supplied on the same request.
	ErrConfigurationConflict = errors.New("only one of tenant id or tenant name may be supplied")

	// ErrNoDefaultTenant indicates neither identifier was supplied and no
	// default tenant is configured.
	ErrNoDefaultTenant = errors.New("no tenant specified and no default tenant configured")
)

// UnknownTenantError indicates the supplied tenant identifier matches no
// registered tenant.
type UnknownTenantError struct {
	Identifier string
}

// Error implements the error interface.
func (e *UnknownTenantError) Error() string {
	return fmt.Sprintf("unknown tenant %q", e.Identifier)
}

// Is reports whether target is an UnknownTenantError.
func (e *UnknownTenantError) Is(target error) bool {
	_, ok := target.(*UnknownTenantError)
	return ok
}

// UnsupportedClassError indicates the tenant has no targets registered for
// the requested class.
type UnsupportedClassError struct {
	Tenant string
	Class  TargetClass
}

// Error implements the error interface.
func (e *UnsupportedClassError) Error() string {
	return fmt.Sprintf("tenant %q has no %s targets configured", e.Tenant, e.Class)
}

// Is reports whether target is an UnsupportedClassError.
func (e *UnsupportedClassError) Is(target error) bool {
	_, ok := target.(*UnsupportedClassError)
	return ok
}
