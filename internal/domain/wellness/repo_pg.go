package wellness

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ayursutra/portal/internal/platform/db"
)

type repoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &repoPG{q: q} }

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	_, err := db.ConnFromContext(ctx, r.q).Exec(ctx, `
		INSERT INTO progress_entries (id, patient_id, metric, value, recorded_at, note)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.PatientID, e.Metric, e.Value, e.RecordedAt, e.Note)
	if err != nil {
		return fmt.Errorf("insert progress entry: %w", err)
	}
	return nil
}

func (r *repoPG) ListByMetric(ctx context.Context, patientID uuid.UUID, metric string) ([]*Entry, error) {
	rows, err := db.ConnFromContext(ctx, r.q).Query(ctx, `
		SELECT id, patient_id, metric, value, recorded_at, note
		FROM progress_entries WHERE patient_id = $1 AND metric = $2
		ORDER BY recorded_at ASC`, patientID, metric)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.PatientID, &e.Metric, &e.Value, &e.RecordedAt, &e.Note); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
