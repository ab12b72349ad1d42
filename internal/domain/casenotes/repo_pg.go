package casenotes

import (
	"context"
	"encoding/json"
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

const noteCols = `id, patient_email, practitioner_id, subjective, objective, assessment, plan, attachments, created_at, updated_at`

func scanNote(row pgx.Row) (*CaseNote, error) {
	var (
		n           CaseNote
		attachments []byte
	)
	err := row.Scan(&n.ID, &n.PatientEmail, &n.PractitionerID, &n.Subjective, &n.Objective,
		&n.Assessment, &n.Plan, &attachments, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(attachments, &n.Attachments); err != nil {
		return nil, fmt.Errorf("decode attachments: %w", err)
	}
	return &n, nil
}

func encodeAttachments(a []Attachment) ([]byte, error) {
	if a == nil {
		a = []Attachment{}
	}
	return json.Marshal(a)
}

func (r *repoPG) Create(ctx context.Context, n *CaseNote) error {
	attachments, err := encodeAttachments(n.Attachments)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO case_notes (`+noteCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		n.ID, n.PatientEmail, n.PractitionerID, n.Subjective, n.Objective, n.Assessment, n.Plan,
		attachments, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert case note: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*CaseNote, error) {
	n, err := scanNote(r.conn(ctx).QueryRow(ctx, `SELECT `+noteCols+` FROM case_notes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return n, err
}

func (r *repoPG) List(ctx context.Context, patientEmail string) ([]*CaseNote, error) {
	query := `SELECT ` + noteCols + ` FROM case_notes`
	var args []any
	if patientEmail != "" {
		query += ` WHERE patient_email = $1`
		args = append(args, patientEmail)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*CaseNote
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *repoPG) Modify(ctx context.Context, id uuid.UUID, fn func(n *CaseNote) error) (*CaseNote, error) {
	var out *CaseNote
	err := db.WithTx(ctx, r.q, func(ctx context.Context) error {
		n, err := scanNote(r.conn(ctx).QueryRow(ctx,
			`SELECT `+noteCols+` FROM case_notes WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
		attachments, err := encodeAttachments(n.Attachments)
		if err != nil {
			return err
		}
		_, err = r.conn(ctx).Exec(ctx, `
			UPDATE case_notes SET subjective = $2, objective = $3, assessment = $4, plan = $5,
				attachments = $6, updated_at = $7
			WHERE id = $1`,
			n.ID, n.Subjective, n.Objective, n.Assessment, n.Plan, attachments, n.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update case note: %w", err)
		}
		out = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM case_notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete case note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
