package intent

import (
	"context"
	"sort"
	"sync"
	"time"

	"lethe/internal/deletion/models"
	"lethe/pkg/platform/sentinel"
)

// InMemoryStore keeps intents in a map keyed by user ID. Used by unit tests
// and single-process development runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	intents map[string]*models.DeletionIntent
	now     func() time.Time
}

func New() *InMemoryStore {
	return &InMemoryStore{
		intents: make(map[string]*models.DeletionIntent),
		now:     time.Now,
	}
}

// WithClock overrides the store clock. Test helper.
func (s *InMemoryStore) WithClock(now func() time.Time) *InMemoryStore {
	s.now = now
	return s
}

func (s *InMemoryStore) Upsert(_ context.Context, intent *models.DeletionIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *intent
	if cp.RequestedAt.IsZero() {
		cp.RequestedAt = s.now()
	}
	if cp.Status == "" {
		cp.Status = models.StatusPending
	}
	s.intents[cp.UserID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, userID string) (*models.DeletionIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	intent, ok := s.intents[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *intent
	return &cp, nil
}

func (s *InMemoryStore) MarkCompleted(_ context.Context, userID string, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	now := s.now()
	intent.Status = models.StatusCompleted
	intent.CompletedAt = &now
	if detail != "" {
		intent.LastError = detail
	}
	return nil
}

func (s *InMemoryStore) MarkError(_ context.Context, userID string, lastError, errorCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	now := s.now()
	intent.Status = models.StatusError
	intent.LastError = lastError
	intent.ErrorCode = errorCode
	intent.ErrorAt = &now
	return nil
}

func (s *InMemoryStore) RecordRetryFailure(_ context.Context, userID string, lastError string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[userID]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	now := s.now()
	intent.RetryCount++
	intent.LastError = lastError
	intent.LastRetryAt = &now
	return intent.RetryCount, nil
}

func (s *InMemoryStore) MarkPermanentError(_ context.Context, userID string, finalError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	intent.Status = models.StatusPermanentError
	intent.FinalError = finalError
	return nil
}

func (s *InMemoryStore) Remove(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.intents[userID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.intents, userID)
	return nil
}

func (s *InMemoryStore) ListRetryable(_ context.Context, budget, limit int) ([]*models.DeletionIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.DeletionIntent
	for _, intent := range s.intents {
		if intent.Status == models.StatusError && intent.RetryCount < budget {
			cp := *intent
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) ListOlderThan(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for userID, intent := range s.intents {
		if intent.RequestedAt.Before(cutoff) {
			out = append(out, userID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *InMemoryStore) RemoveBatch(_ context.Context, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, userID := range userIDs {
		delete(s.intents, userID)
	}
	return nil
}

// Len reports the number of live intents. Test helper.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.intents)
}
