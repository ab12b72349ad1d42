package cart

import (
	"context"
	"sync"
)

// Store persists carts keyed by user id.
type Store interface {
	Load(ctx context.Context, userID string) ([]Item, error)
	// Update applies fn atomically to the user's cart and returns the result.
	Update(ctx context.Context, userID string, fn func([]Item) ([]Item, error)) ([]Item, error)
	Delete(ctx context.Context, userID string) error
}

// MemoryStore is used when REDIS_URL is not configured.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string][]Item
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]Item)}
}

func (s *MemoryStore) Load(_ context.Context, userID string) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.carts[userID]...), nil
}

func (s *MemoryStore) Update(_ context.Context, userID string, fn func([]Item) ([]Item, error)) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(append([]Item(nil), s.carts[userID]...))
	if err != nil {
		return nil, err
	}
	s.carts[userID] = next
	return append([]Item(nil), next...), nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}
