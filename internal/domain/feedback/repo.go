package feedback

import "context"

type Repository interface {
	Create(ctx context.Context, f *Feedback) error
	// List returns a page of feedback, newest first, and the total count.
	List(ctx context.Context, limit, offset int) ([]*Feedback, int, error)
	Summary(ctx context.Context) (*Summary, error)
}
