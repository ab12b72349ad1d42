package emergency

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ayursutra/portal/internal/platform/db"
)

type repoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &repoPG{q: q} }

func (r *repoPG) conn(ctx context.Context) db.Conn {
	return db.ConnFromContext(ctx, r.q)
}

const emergencyCols = `id, user_id, patient_name, symptoms, status, submitted_at, updated_at`

func scanEmergency(row pgx.Row) (*Emergency, error) {
	var e Emergency
	if err := row.Scan(&e.ID, &e.UserID, &e.PatientName, &e.Symptoms, &e.Status, &e.SubmittedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repoPG) Create(ctx context.Context, e *Emergency) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO emergencies (`+emergencyCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.UserID, e.PatientName, e.Symptoms, e.Status, e.SubmittedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert emergency: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Emergency, error) {
	e, err := scanEmergency(r.conn(ctx).QueryRow(ctx, `SELECT `+emergencyCols+` FROM emergencies WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func (r *repoPG) Update(ctx context.Context, e *Emergency) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE emergencies SET status = $2, updated_at = $3 WHERE id = $1`,
		e.ID, e.Status, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update emergency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, status string) ([]*Emergency, error) {
	query := `SELECT ` + emergencyCols + ` FROM emergencies`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY submitted_at DESC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Emergency
	for rows.Next() {
		e, err := scanEmergency(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
