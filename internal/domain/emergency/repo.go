package emergency

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Emergency) error
	GetByID(ctx context.Context, id uuid.UUID) (*Emergency, error)
	Update(ctx context.Context, e *Emergency) error
	// List returns emergencies newest first. An empty status matches all.
	List(ctx context.Context, status string) ([]*Emergency, error)
}
