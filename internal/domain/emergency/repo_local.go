package emergency

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/ayursutra/portal/internal/platform/localstore"
)

const EmergenciesKey = "emergencies_v1"

type repoLocal struct {
	items *localstore.Collection[Emergency]
}

func NewRepoLocal(s *localstore.Store) Repository {
	return &repoLocal{items: localstore.NewCollection[Emergency](s, EmergenciesKey)}
}

func (r *repoLocal) Create(ctx context.Context, e *Emergency) error {
	return r.items.Append(ctx, *e)
}

func (r *repoLocal) GetByID(ctx context.Context, id uuid.UUID) (*Emergency, error) {
	e, ok, err := r.items.Find(ctx, func(e Emergency) bool { return e.ID == id })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (r *repoLocal) Update(ctx context.Context, e *Emergency) error {
	return r.items.Mutate(ctx, func(items []Emergency) ([]Emergency, error) {
		for i := range items {
			if items[i].ID == e.ID {
				items[i] = *e
				return items, nil
			}
		}
		return nil, ErrNotFound
	})
}

func (r *repoLocal) List(ctx context.Context, status string) ([]*Emergency, error) {
	all, err := r.items.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Emergency
	for i := range all {
		if status == "" || all[i].Status == status {
			out = append(out, &all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}
