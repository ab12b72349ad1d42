package feedback

import (
	"context"
	"sort"

	"github.com/ayursutra/portal/internal/platform/localstore"
	"github.com/ayursutra/portal/pkg/pagination"
)

const FeedbackKey = "feedback_v1"

type repoLocal struct {
	items *localstore.Collection[Feedback]
}

func NewRepoLocal(s *localstore.Store) Repository {
	return &repoLocal{items: localstore.NewCollection[Feedback](s, FeedbackKey)}
}

func (r *repoLocal) Create(ctx context.Context, f *Feedback) error {
	return r.items.Append(ctx, *f)
}

func (r *repoLocal) List(ctx context.Context, limit, offset int) ([]*Feedback, int, error) {
	all, err := r.items.All(ctx)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*Feedback, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return pagination.Page(out, limit, offset), len(out), nil
}

func (r *repoLocal) Summary(ctx context.Context) (*Summary, error) {
	all, err := r.items.All(ctx)
	if err != nil {
		return nil, err
	}
	s := &Summary{Count: len(all)}
	if s.Count == 0 {
		return s, nil
	}
	sum := 0
	for _, f := range all {
		sum += f.Rating
	}
	s.Average = float64(sum) / float64(s.Count)
	return s, nil
}
