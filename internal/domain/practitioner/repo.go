package practitioner

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Get(ctx context.Context, accountID uuid.UUID) (*Profile, error)
	// Upsert creates or replaces the profile for p.AccountID.
	Upsert(ctx context.Context, p *Profile) error
	List(ctx context.Context) ([]*Profile, error)
}
