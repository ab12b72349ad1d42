package practitioner

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

const profileCols = `account_id, name, email, phone, specialization, hours, bio, photo_url, photo_blob_id, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.AccountID, &p.Name, &p.Email, &p.Phone, &p.Specialization, &p.Hours, &p.Bio,
		&p.PhotoURL, &p.PhotoBlobID, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Get(ctx context.Context, accountID uuid.UUID) (*Profile, error) {
	p, err := scanProfile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+profileCols+` FROM practitioner_profiles WHERE account_id = $1`, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) Upsert(ctx context.Context, p *Profile) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO practitioner_profiles (`+profileCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (account_id) DO UPDATE SET
			name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone,
			specialization = EXCLUDED.specialization, hours = EXCLUDED.hours, bio = EXCLUDED.bio,
			photo_url = EXCLUDED.photo_url, photo_blob_id = EXCLUDED.photo_blob_id,
			updated_at = EXCLUDED.updated_at`,
		p.AccountID, p.Name, p.Email, p.Phone, p.Specialization, p.Hours, p.Bio, p.PhotoURL, p.PhotoBlobID, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert practitioner profile: %w", err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context) ([]*Profile, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+profileCols+` FROM practitioner_profiles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
