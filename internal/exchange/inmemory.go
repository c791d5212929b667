package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps the last exchange in process memory.
type InMemoryStore struct {
	mu   sync.RWMutex
	last *Exchange
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Save(_ context.Context, e Exchange) error {
	e = normalize(e)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &e
	return nil
}

func (s *InMemoryStore) Last(_ context.Context) (Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Exchange{}, ErrNotFound
	}
	return *s.last, nil
}

func (s *InMemoryStore) Mode() string { return "in-memory" }

func (s *InMemoryStore) Close() error { return nil }

func normalize(e Exchange) Exchange {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}
