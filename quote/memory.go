package quote

import (
	"context"
	"sync"
	"time"

	"github.com/cngnbridge/core/errors"
)

// MemoryStore is an in-memory Store. Consume takes the map-wide lock for
// its entire check-then-set, which is the in-memory analogue of the single
// guarded UPDATE a real database performs.
type MemoryStore struct {
	mu     sync.Mutex
	quotes map[string]*Quote
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{quotes: make(map[string]*Quote)}
}

func (s *MemoryStore) Create(_ context.Context, q *Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.quotes[q.QuoteID]; exists {
		return errors.NewQuoteError(errors.KindInvariant, errors.QUOTE_NOT_FOUND, "quote already exists", nil)
	}
	cp := *q
	s.quotes[q.QuoteID] = &cp
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, quoteID string) (*Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, exists := s.quotes[quoteID]
	if !exists {
		return nil, ErrNotFound
	}
	if q.Status == StatusConsumed {
		return nil, ErrAlreadyConsumed
	}
	if q.Status == StatusExpired || q.IsExpired(time.Now()) {
		q.Status = StatusExpired
		return nil, ErrExpired
	}

	q.Status = StatusConsumed
	cp := *q
	return &cp, nil
}

func (s *MemoryStore) FindByID(_ context.Context, quoteID string) (*Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, exists := s.quotes[quoteID]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (s *MemoryStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, q := range s.quotes {
		if q.Status == StatusPending && q.IsExpired(now) {
			q.Status = StatusExpired
			count++
		}
	}
	return count, nil
}

var _ Store = (*MemoryStore)(nil)
