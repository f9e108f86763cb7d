package operator

import (
	"context"
	"sync"
)

// InMemoryRegistry tracks operator IDs in a set. Used by unit tests and
// local runs.
type InMemoryRegistry struct {
	mu        sync.RWMutex
	operators map[string]struct{}
}

func New() *InMemoryRegistry {
	return &InMemoryRegistry{operators: make(map[string]struct{})}
}

func (r *InMemoryRegistry) Add(_ context.Context, callerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operators[callerID] = struct{}{}
	return nil
}

func (r *InMemoryRegistry) Remove(_ context.Context, callerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.operators, callerID)
	return nil
}

func (r *InMemoryRegistry) IsOperator(_ context.Context, callerID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.operators[callerID]
	return ok, nil
}
