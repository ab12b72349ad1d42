package casenotes

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/ayursutra/portal/internal/platform/localstore"
)

const NotesKey = "case_notes_v1"

type repoLocal struct {
	notes *localstore.Collection[CaseNote]
}

func NewRepoLocal(s *localstore.Store) Repository {
	return &repoLocal{notes: localstore.NewCollection[CaseNote](s, NotesKey)}
}

func (r *repoLocal) Create(ctx context.Context, n *CaseNote) error {
	return r.notes.Append(ctx, *n)
}

func (r *repoLocal) GetByID(ctx context.Context, id uuid.UUID) (*CaseNote, error) {
	n, ok, err := r.notes.Find(ctx, func(n CaseNote) bool { return n.ID == id })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return &n, nil
}

func (r *repoLocal) List(ctx context.Context, patientEmail string) ([]*CaseNote, error) {
	all, err := r.notes.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*CaseNote
	for i := range all {
		if patientEmail == "" || all[i].PatientEmail == patientEmail {
			out = append(out, &all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *repoLocal) Modify(ctx context.Context, id uuid.UUID, fn func(n *CaseNote) error) (*CaseNote, error) {
	var out CaseNote
	err := r.notes.Mutate(ctx, func(items []CaseNote) ([]CaseNote, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			if err := fn(&items[i]); err != nil {
				return nil, err
			}
			out = items[i]
			return items, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *repoLocal) Delete(ctx context.Context, id uuid.UUID) error {
	return r.notes.Mutate(ctx, func(items []CaseNote) ([]CaseNote, error) {
		for i := range items {
			if items[i].ID == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
}
