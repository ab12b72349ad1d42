package feedback

import (
	"context"
	"fmt"

	"github.com/ayursutra/portal/internal/platform/db"
)

type repoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &repoPG{q: q} }

func (r *repoPG) Create(ctx context.Context, f *Feedback) error {
	_, err := db.ConnFromContext(ctx, r.q).Exec(ctx, `
		INSERT INTO feedback (id, user_id, rating, comments, submitted_at)
		VALUES ($1,$2,$3,$4,$5)`,
		f.ID, f.UserID, f.Rating, f.Comments, f.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Feedback, int, error) {
	conn := db.ConnFromContext(ctx, r.q)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, `
		SELECT id, user_id, rating, comments, submitted_at
		FROM feedback ORDER BY submitted_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Feedback
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.UserID, &f.Rating, &f.Comments, &f.SubmittedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &f)
	}
	return out, total, rows.Err()
}

func (r *repoPG) Summary(ctx context.Context) (*Summary, error) {
	var s Summary
	err := db.ConnFromContext(ctx, r.q).QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(rating), 0)::float8 FROM feedback`).Scan(&s.Count, &s.Average)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
