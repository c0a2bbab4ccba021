// Package registry resolves a request's tenant context to a concrete
// backend target. It owns the tenant lookup tables and the per-class
// round-robin pools.
package registry

import (
	"fmt"
	"strings"

	"github.com/passage-gw/passage/internal/config"
	"github.com/passage-gw/passage/internal/credential"
)

// TargetClass distinguishes production from staging backend instances.
type TargetClass string

const (
	// ClassPrimary is the production target class.
	ClassPrimary TargetClass = "primary"
	// ClassStaging is the staging target class.
	ClassStaging TargetClass = "staging"
)

// ParseClass parses a target class string, case-insensitively.
func ParseClass(s string) (TargetClass, error) {
	switch strings.ToLower(s) {
	case string(ClassPrimary):
		return ClassPrimary, nil
	case string(ClassStaging):
		return ClassStaging, nil
	default:
		return "", fmt.Errorf("unknown target class %q", s)
	}
}

// Target is the immutable description of one physical backend API
// instance. Descriptor fields are fixed at construction; only the owned
// credential cache carries mutable state.
type Target struct {
	tenantID       string
	tenantName     string
	class          TargetClass
	baseURI        string
	clientID       string
	readGroup      string
	readWriteGroup string
	credentials    *credential.Cache
}

// NewTarget creates a target from a validated configuration descriptor and
// its credential cache.
func NewTarget(cfg config.Target, creds *credential.Cache) (*Target, error) {
	class, err := ParseClass(cfg.Class)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, fmt.Errorf("credential cache is required for target %s/%s", cfg.TenantID, cfg.Class)
	}

	return &Target{
		tenantID:       cfg.TenantID,
		tenantName:     cfg.TenantName,
		class:          class,
		baseURI:        strings.TrimRight(cfg.BaseURI, "/"),
		clientID:       cfg.ClientID,
		readGroup:      cfg.ReadGroup,
		readWriteGroup: cfg.ReadWriteGroup,
		credentials:    creds,
	}, nil
}

// TenantID returns the tenant identifier.
func (t *Target) TenantID() string { return t.tenantID }

// TenantName returns the tenant friendly name.
func (t *Target) TenantName() string { return t.tenantName }

// Class returns the target class.
func (t *Target) Class() TargetClass { return t.class }

// BaseURI returns the backend base address without a trailing slash.
func (t *Target) BaseURI() string { return t.baseURI }

// ClientID returns the OAuth2 client identifier.
func (t *Target) ClientID() string { return t.clientID }

// ReadGroup returns the group whose members may issue GET requests.
func (t *Target) ReadGroup() string { return t.readGroup }

// ReadWriteGroup returns the group whose members may issue any verb.
func (t *Target) ReadWriteGroup() string { return t.readWriteGroup }

// Credentials returns the target's credential cache. The cache is shared
// between clones so every copy of a target observes the same token.
func (t *Target) Credentials() *credential.Cache { return t.credentials }

// Clone returns a defensive copy of the target descriptor. The credential
// cache pointer is shared; everything else is copied so a held reference
// can never mutate registry state.
func (t *Target) Clone() *Target {
	clone := *t
	return &clone
}
