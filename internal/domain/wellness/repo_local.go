package wellness

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/ayursutra/portal/internal/platform/localstore"
)

const ProgressKey = "progress_v1"

type repoLocal struct {
	entries *localstore.Collection[Entry]
}

func NewRepoLocal(s *localstore.Store) Repository {
	return &repoLocal{entries: localstore.NewCollection[Entry](s, ProgressKey)}
}

func (r *repoLocal) Create(ctx context.Context, e *Entry) error {
	return r.entries.Append(ctx, *e)
}

func (r *repoLocal) ListByMetric(ctx context.Context, patientID uuid.UUID, metric string) ([]*Entry, error) {
	all, err := r.entries.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Entry
	for i := range all {
		if all[i].PatientID == patientID && all[i].Metric == metric {
			out = append(out, &all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}
