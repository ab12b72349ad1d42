// Package practitioner manages the public profile doctors show to patients.
package practitioner

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("practitioner profile not found")
	ErrNotPractitioner = errors.New("account is not a practitioner")
)

type Profile struct {
	AccountID      uuid.UUID `db:"account_id" json:"account_id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	Phone          string    `db:"phone" json:"phone,omitempty"`
	Specialization string    `db:"specialization" json:"specialization,omitempty"`
	Hours          string    `db:"hours" json:"hours,omitempty"`
	Bio            string    `db:"bio" json:"bio,omitempty"`
	PhotoURL       string    `db:"photo_url" json:"photo_url,omitempty"`
	PhotoBlobID    string    `db:"photo_blob_id" json:"-"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// SaveRequest is merged into the stored profile. Nil fields keep their value.
type SaveRequest struct {
	Name           *string `json:"name"`
	Phone          *string `json:"phone"`
	Specialization *string `json:"specialization"`
	Hours          *string `json:"hours"`
	Bio            *string `json:"bio"`
}
