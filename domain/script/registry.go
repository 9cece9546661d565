package script

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// ErrScriptNotFound is returned by Lookup for unknown names.
var ErrScriptNotFound = errors.New("script not found")

// Registry manages script definitions and provides lookup functionality.
type Registry struct {
	scripts map[string]*Script
	mu      sync.RWMutex
}

// NewRegistry creates a new empty script registry.
func NewRegistry() *Registry {
	return &Registry{
		scripts: make(map[string]*Script),
	}
}

// Register adds a script to the registry.
// If a script with the same name exists, it will be replaced.
func (r *Registry) Register(script *Script) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[script.Name] = script
}

// Get retrieves a script by name.
// Returns nil if not found.
func (r *Registry) Get(name string) *Script {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scripts[name]
}

// Lookup retrieves a script by name or fails with ErrScriptNotFound.
func (r *Registry) Lookup(name string) (*Script, error) {
	if s := r.Get(name); s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, name)
}

// List returns all registered script names, sorted alphabetically.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := lo.Keys(r.scripts)
	slices.Sort(names)
	return names
}

// Count returns the number of registered scripts.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scripts)
}

// Exists checks if a script with the given name exists.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.scripts[name]
	return ok
}
