package registry

import (
	"sync"
)

// TenantPool holds one tenant's backend targets grouped by class, with a
// fair round-robin cursor per class.
type TenantPool struct {
	mu      sync.Mutex
	tenant  string
	classes map[TargetClass]*targetRing
}

// targetRing is an ordered target list with a wrap-around cursor.
// Invariant: cursor is always in [0, len(targets)).
type targetRing struct {
	targets []*Target
	cursor  int
}

// NewTenantPool creates an empty pool for the named tenant.
func NewTenantPool(tenant string) *TenantPool {
	return &TenantPool{
		tenant:  tenant,
		classes: make(map[TargetClass]*targetRing),
	}
}

// Tenant returns the tenant identifier the pool was created for.
func (p *TenantPool) Tenant() string {
	return p.tenant
}

// Add appends a defensive copy of the target to its class ring. The first
// target of a new class initializes the cursor to 0.
func (p *TenantPool) Add(t *Target) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ring, ok := p.classes[t.Class()]
	if !ok {
		ring = &targetRing{}
		p.classes[t.Class()] = ring
	}
	ring.targets = append(ring.targets, t.Clone())
}

// Next returns the next target of the class in registration order. The
// lock covers the read-then-increment so concurrent callers never skip or
// repeat a slot; it is never held across I/O.
func (p *TenantPool) Next(class TargetClass) (*Target, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ring, ok := p.classes[class]
	if !ok || len(ring.targets) == 0 {
		return nil, &UnsupportedClassError{Tenant: p.tenant, Class: class}
	}

	t := ring.targets[ring.cursor]
	ring.cursor = (ring.cursor + 1) % len(ring.targets)
	return t, nil
}

// Len returns the number of targets registered for the class.
func (p *TenantPool) Len(class TargetClass) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	ring, ok := p.classes[class]
	if !ok {
		return 0
	}
	return len(ring.targets)
}

// Classes returns the classes that have at least one registered target.
func (p *TenantPool) Classes() []TargetClass {
	p.mu.Lock()
	defer p.mu.Unlock()

	classes := make([]TargetClass, 0, len(p.classes))
	for class, ring := range p.classes {
		if len(ring.targets) > 0 {
			classes = append(classes, class)
		}
	}
	return classes
}
