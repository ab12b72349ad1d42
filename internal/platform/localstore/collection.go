package localstore

import "context"

// Collection is a typed JSON array stored under one key.
type Collection[T any] struct {
	store *Store
	key   string
}

func NewCollection[T any](s *Store, key string) *Collection[T] {
	return &Collection[T]{store: s, key: key}
}

// All returns every item. A key that was never written is an empty collection.
func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	var items []T
	if _, err := c.store.Load(ctx, c.key, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Find returns the first item matching pred.
func (c *Collection[T]) Find(ctx context.Context, pred func(T) bool) (T, bool, error) {
	var zero T
	items, err := c.All(ctx)
	if err != nil {
		return zero, false, err
	}
	for _, it := range items {
		if pred(it) {
			return it, true, nil
		}
	}
	return zero, false, nil
}

// Mutate rewrites the collection atomically with whatever fn returns.
func (c *Collection[T]) Mutate(ctx context.Context, fn func(items []T) ([]T, error)) error {
	var items []T
	return c.store.Update(ctx, c.key, &items, func(bool) error {
		next, err := fn(items)
		if err != nil {
			return err
		}
		if next == nil {
			next = []T{}
		}
		items = next
		return nil
	})
}

// Append adds one item to the end of the collection.
func (c *Collection[T]) Append(ctx context.Context, item T) error {
	return c.Mutate(ctx, func(items []T) ([]T, error) {
		return append(items, item), nil
	})
}
