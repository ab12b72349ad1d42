package patients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ayursutra/portal/internal/platform/db"
)

type repoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &repoPG{q: q} }

func (r *repoPG) conn(ctx context.Context) db.Conn {
	return db.ConnFromContext(ctx, r.q)
}

const recordCols = `email, name, phone, dob, allergies, history, notes, created_at, updated_at`

func scanRecord(row pgx.Row) (*PatientRecord, error) {
	var (
		rec                PatientRecord
		allergies, history []byte
	)
	err := row.Scan(&rec.Email, &rec.Name, &rec.Phone, &rec.DOB, &allergies, &history, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(allergies, &rec.Allergies); err != nil {
		return nil, fmt.Errorf("decode allergies: %w", err)
	}
	if err := json.Unmarshal(history, &rec.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return &rec, nil
}

func encodeLists(rec *PatientRecord) (allergies, history []byte, err error) {
	if allergies, err = json.Marshal(nonNil(rec.Allergies)); err != nil {
		return nil, nil, err
	}
	if history, err = json.Marshal(nonNil(rec.History)); err != nil {
		return nil, nil, err
	}
	return allergies, history, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (r *repoPG) Create(ctx context.Context, rec *PatientRecord) error {
	allergies, history, err := encodeLists(rec)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_records (`+recordCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rec.Email, rec.Name, rec.Phone, rec.DOB, allergies, history, rec.Notes, rec.CreatedAt, rec.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrExists
	}
	if err != nil {
		return fmt.Errorf("insert patient record: %w", err)
	}
	return nil
}

func (r *repoPG) Get(ctx context.Context, email string) (*PatientRecord, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM patient_records WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (r *repoPG) List(ctx context.Context, search string) ([]*PatientRecord, error) {
	query := `SELECT ` + recordCols + ` FROM patient_records`
	var args []any
	if search != "" {
		query += ` WHERE name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY name, email`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*PatientRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repoPG) Modify(ctx context.Context, email string, fn func(rec *PatientRecord) error) (*PatientRecord, error) {
	var out *PatientRecord
	err := db.WithTx(ctx, r.q, func(ctx context.Context) error {
		rec, err := scanRecord(r.conn(ctx).QueryRow(ctx,
			`SELECT `+recordCols+` FROM patient_records WHERE email = $1 FOR UPDATE`, email))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		allergies, history, err := encodeLists(rec)
		if err != nil {
			return err
		}
		_, err = r.conn(ctx).Exec(ctx, `
			UPDATE patient_records SET name = $2, phone = $3, dob = $4, allergies = $5, history = $6,
				notes = $7, updated_at = $8
			WHERE email = $1`,
			rec.Email, rec.Name, rec.Phone, rec.DOB, allergies, history, rec.Notes, rec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update patient record: %w", err)
		}
		out = rec
		return nil
	})
	return out, err
}
