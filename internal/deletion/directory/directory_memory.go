package directory

import (
	"context"
	"sync"

	"lethe/internal/deletion/models"
	"lethe/pkg/platform/sentinel"
)

// InMemoryDirectory is a principal directory for unit tests and local runs.
// Delete of an absent principal returns sentinel.ErrNotFound so callers can
// apply the idempotent-success rule themselves.
type InMemoryDirectory struct {
	mu         sync.RWMutex
	principals map[string]*models.Principal

	// failWith, when set, makes Delete fail. Test hook for exercising the
	// retry pipeline.
	failWith error
}

func NewInMemory() *InMemoryDirectory {
	return &InMemoryDirectory{principals: make(map[string]*models.Principal)}
}

// Put registers a principal.
func (d *InMemoryDirectory) Put(p *models.Principal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *p
	d.principals[p.ID] = &cp
}

// FailDeletesWith makes subsequent Delete calls on existing principals
// return err. Pass nil to restore normal behavior.
func (d *InMemoryDirectory) FailDeletesWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failWith = err
}

func (d *InMemoryDirectory) Lookup(_ context.Context, userID string) (*models.Principal, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.principals[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (d *InMemoryDirectory) Delete(_ context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.principals[userID]; !ok {
		return sentinel.ErrNotFound
	}
	if d.failWith != nil {
		return d.failWith
	}
	delete(d.principals, userID)
	return nil
}
