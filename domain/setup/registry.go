package setup

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicateDescriptor is returned when two descriptors share an identity.
var ErrDuplicateDescriptor = errors.New("duplicate setup descriptor")

// Registry holds descriptors in registration order.
type Registry struct {
	mu          sync.RWMutex
	descriptors []*Descriptor
	byIdentity  map[string]*Descriptor
}

// NewRegistry creates a new empty descriptor registry.
func NewRegistry() *Registry {
	return &Registry{byIdentity: make(map[string]*Descriptor)}
}

// Register appends a descriptor.
func (r *Registry) Register(d *Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byIdentity[d.Identity()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateDescriptor, d.Label())
	}
	r.descriptors = append(r.descriptors, d)
	r.byIdentity[d.Identity()] = d
	return nil
}

// Get retrieves a descriptor by identity. Returns nil if not found.
func (r *Registry) Get(identity string) *Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byIdentity[identity]
}

// All returns the descriptors in registration order.
func (r *Registry) All() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Count returns the number of registered descriptors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptors)
}
