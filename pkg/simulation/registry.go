package simulation

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned for unknown run ids
var ErrNotFound = errors.New("simulation not found")

// Registry tracks live runs by id. The lock only guards the map: runs are
// stepped outside it.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]Run
}

// NewRegistry creates a new run registry
func NewRegistry() *Registry {
	return &Registry{
		runs: make(map[string]Run),
	}
}

// Register adds a run to the registry
func (r *Registry) Register(run Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.ID()]; exists {
		return fmt.Errorf("simulation %s already registered", run.ID())
	}

	r.runs[run.ID()] = run
	return nil
}

// Get returns the run with the given id
func (r *Registry) Get(id string) (Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, exists := r.runs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return run, nil
}

// Remove drops a run and reports whether it was present
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.runs[id]
	delete(r.runs, id)
	return exists
}

// List returns all registered run ids, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.runs))
	for id := range r.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered runs
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}
