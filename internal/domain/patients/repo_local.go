package patients

import (
	"context"
	"sort"
	"strings"

	"github.com/ayursutra/portal/internal/platform/localstore"
)

const RecordsKey = "patient_records_v1"

type repoLocal struct {
	records *localstore.Collection[PatientRecord]
}

func NewRepoLocal(s *localstore.Store) Repository {
	return &repoLocal{records: localstore.NewCollection[PatientRecord](s, RecordsKey)}
}

func (r *repoLocal) Create(ctx context.Context, rec *PatientRecord) error {
	return r.records.Mutate(ctx, func(items []PatientRecord) ([]PatientRecord, error) {
		for _, it := range items {
			if it.Email == rec.Email {
				return nil, ErrExists
			}
		}
		return append(items, *rec), nil
	})
}

func (r *repoLocal) Get(ctx context.Context, email string) (*PatientRecord, error) {
	rec, ok, err := r.records.Find(ctx, func(p PatientRecord) bool { return p.Email == email })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (r *repoLocal) List(ctx context.Context, search string) ([]*PatientRecord, error) {
	all, err := r.records.All(ctx)
	if err != nil {
		return nil, err
	}
	search = strings.ToLower(search)
	var out []*PatientRecord
	for i := range all {
		if all[i].Matches(search) {
			out = append(out, &all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

func (r *repoLocal) Modify(ctx context.Context, email string, fn func(rec *PatientRecord) error) (*PatientRecord, error) {
	var out PatientRecord
	err := r.records.Mutate(ctx, func(items []PatientRecord) ([]PatientRecord, error) {
		for i := range items {
			if items[i].Email != email {
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
