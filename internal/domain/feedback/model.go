// Package feedback collects patient ratings of the clinic.
package feedback

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidRating = errors.New("rating must be between 1 and 5")

const (
	MinRating = 1
	MaxRating = 5
)

type Feedback struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	Rating      int       `db:"rating" json:"rating"`
	Comments    string    `db:"comments" json:"comments,omitempty"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
}

type SubmitRequest struct {
	Rating   int    `json:"rating"`
	Comments string `json:"comments"`
}

type Summary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}
