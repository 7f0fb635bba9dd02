package model

import (
	"sync"
	"time"
)

// Status is the load state of a variant.
type Status string

const (
	StatusUnloaded Status = "unloaded"
	StatusLoading  Status = "loading"
	StatusLoaded   Status = "loaded"
	StatusFailed   Status = "failed"
)

// VariantStatus is the last known state of one variant.
type VariantStatus struct {
	Name     string    `json:"name"`
	Path     string    `json:"path,omitempty"`
	Status   Status    `json:"status"`
	Attempts int       `json:"attempts"`
	Error    string    `json:"error,omitempty"`
	LoadedAt time.Time `json:"loaded_at,omitzero"`
}

// Registry stores per-variant status for health reporting.
type Registry struct {
	order    []string
	variants map[string]*VariantStatus
	mu       sync.RWMutex
}

// NewRegistry creates a registry with every variant unloaded.
func NewRegistry(variants []string) *Registry {
	r := &Registry{
		variants: make(map[string]*VariantStatus, len(variants)),
	}
	for _, v := range variants {
		r.ensure(v)
	}

	return r
}

// Update applies fn to the named variant, creating it if needed.
func (r *Registry) Update(name string, fn func(*VariantStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn(r.ensure(name))
}

// Get returns a copy of the named variant status.
func (r *Registry) Get(name string) (VariantStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vs, ok := r.variants[name]
	if !ok {
		return VariantStatus{}, false
	}
	return *vs, true
}

// List returns copies of all statuses in registration order.
func (r *Registry) List() []VariantStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]VariantStatus, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.variants[name])
	}

	return out
}

// Reset marks every variant unloaded and clears errors.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, vs := range r.variants {
		*vs = VariantStatus{Name: vs.Name, Status: StatusUnloaded}
	}
}

func (r *Registry) ensure(name string) *VariantStatus {
	vs, ok := r.variants[name]
	if !ok {
		vs = &VariantStatus{Name: name, Status: StatusUnloaded}
		r.variants[name] = vs
		r.order = append(r.order, name)
	}

	return vs
}
