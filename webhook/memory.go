package webhook

import (
	"context"
	"sort"
	"sync"
	"time"
)

type eventKey struct {
	provider Provider
	eventID  string
}

// MemoryStore is an in-memory Store. Insert takes the map-wide lock for its
// check-then-set, the in-memory analogue of the UNIQUE(provider, event_id)
// constraint a real database enforces.
type MemoryStore struct {
	mu     sync.Mutex
	events map[eventKey]*Event
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[eventKey]*Event)}
}

func (s *MemoryStore) Insert(_ context.Context, e *Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := eventKey{e.Provider, e.EventID}
	if _, exists := s.events[key]; exists {
		return false, nil
	}
	cp := *e
	s.events[key] = &cp
	return true, nil
}

func (s *MemoryStore) MarkCompleted(_ context.Context, provider Provider, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.events[eventKey{provider, eventID}]
	if !exists {
		return nil
	}
	now := time.Now()
	e.Status = StatusCompleted
	e.ProcessedAt = &now
	e.ErrorMessage = ""
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, provider Provider, eventID string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.events[eventKey{provider, eventID}]
	if !exists {
		return nil
	}
	e.ErrorMessage = errMsg
	return nil
}

func (s *MemoryStore) ListPendingForRetry(_ context.Context, maxRetries, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*Event
	for _, e := range s.events {
		if e.Status == StatusPending && e.RetryCount < maxRetries {
			cp := *e
			pending = append(pending, &cp)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *MemoryStore) IncrementRetry(_ context.Context, provider Provider, eventID string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.events[eventKey{provider, eventID}]
	if !exists {
		return nil
	}
	e.RetryCount++
	e.ErrorMessage = errMsg
	if e.RetryCount >= 5 {
		e.Status = StatusFailed
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
