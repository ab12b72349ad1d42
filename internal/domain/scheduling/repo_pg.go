package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ayursutra/portal/internal/platform/db"
)

type repoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &repoPG{q: q} }

func (r *repoPG) conn(ctx context.Context) db.Conn {
	return db.ConnFromContext(ctx, r.q)
}

const apptCols = `id, patient_id, patient_name, patient_email, practitioner_id, practitioner_name,
	center, start_at, duration_min, treatments, total_price, notes, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var treatments []byte
	err := row.Scan(&a.ID, &a.PatientID, &a.PatientName, &a.PatientEmail, &a.PractitionerID, &a.PractitionerName,
		&a.Center, &a.Start, &a.DurationMin, &treatments, &a.TotalPrice, &a.Notes, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(treatments) > 0 {
		if err := json.Unmarshal(treatments, &a.Treatments); err != nil {
			return nil, fmt.Errorf("decode treatments: %w", err)
		}
	}
	return &a, nil
}

func collect(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	treatments, err := json.Marshal(a.Treatments)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, patient_name, patient_email, practitioner_id, practitioner_name,
			center, start_at, duration_min, treatments, total_price, notes, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		a.ID, a.PatientID, a.PatientName, a.PatientEmail, a.PractitionerID, a.PractitionerName,
		a.Center, a.Start, a.DurationMin, treatments, a.TotalPrice, a.Notes, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET start_at=$2, status=$3, notes=$4, updated_at=$5
		WHERE id = $1`,
		a.ID, a.Start, a.Status, a.Notes, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointments WHERE patient_id = $1 ORDER BY start_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) ListByPatientEmail(ctx context.Context, email string) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointments WHERE patient_email = $1 ORDER BY start_at DESC`, email)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, f PractitionerFilter) ([]*Appointment, error) {
	where := []string{"practitioner_id = $1"}
	args := []any{practitionerID}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		where = append(where, fmt.Sprintf("start_at >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		where = append(where, fmt.Sprintf("start_at < $%d", len(args)))
	}
	query := `SELECT ` + apptCols + ` FROM appointments WHERE ` + strings.Join(where, " AND ") + ` ORDER BY start_at ASC`
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) ListOverlapping(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE practitioner_id = $1 AND status <> 'cancelled'
			AND start_at < $3 AND start_at + make_interval(mins => duration_min) > $2
		ORDER BY start_at ASC`, practitionerID, from, to)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.q, func(ctx context.Context) error {
		if err := db.AdvisoryLock(ctx, "practitioner:"+practitionerID.String()); err != nil {
			return err
		}
		return fn(ctx)
	})
}
