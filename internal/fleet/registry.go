package fleet

import (
	"sync"
)

// Registry stores units by name and preserves manifest order, which is also
// the bring-up order.
type Registry struct {
	repo  map[string]*Unit
	order []string
	mu    sync.RWMutex
}

// NewRegistry initializes an empty unit registry.
func NewRegistry() *Registry {
	return &Registry{
		repo: make(map[string]*Unit),
		mu:   sync.RWMutex{},
	}
}

// Register adds a unit to the registry by name.
func (r *Registry) Register(u *Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.repo[u.Name]; !exists {
		r.order = append(r.order, u.Name)
	}
	r.repo[u.Name] = u
}

// Get returns a unit by name.
func (r *Registry) Get(name string) (*Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.repo[name]
	return u, ok
}

// All returns units in registration order.
func (r *Registry) All() []*Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Unit, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.repo[name])
	}
	return out
}

// Names returns unit names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.order...)
}
