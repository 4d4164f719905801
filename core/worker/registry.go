package worker

import (
	"fmt"
	"sync"
)

// Registry holds the set of registered workers. Registration order is
// preserved: it is the deterministic tie-breaker when two workers report the
// same confidence.
type Registry struct {
	mu      sync.RWMutex
	workers []Worker
	byID    map[string]Worker
}

// NewRegistry creates an empty worker registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]Worker),
	}
}

// Register adds a worker. Registering a duplicate ID is an error.
func (r *Registry) Register(w Worker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := w.ID()
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("register worker: duplicate id %q", id)
	}

	r.workers = append(r.workers, w)
	r.byID[id] = w
	return nil
}

// Get returns the worker with the given ID, or nil.
func (r *Registry) Get(id string) Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// Workers returns the registered workers in registration order.
func (r *Registry) Workers() []Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Worker, len(r.workers))
	copy(out, r.workers)
	return out
}

// Len returns the number of registered workers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}
