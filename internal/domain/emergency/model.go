// Package emergency handles patient emergency requests and staff alerting.
package emergency

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("emergency not found")
	ErrSymptomsRequired  = errors.New("symptoms are required")
	ErrInvalidStatus     = errors.New("status must be new, acknowledged or resolved")
	ErrInvalidTransition = errors.New("emergency status can only move forward")
)

const (
	StatusNew          = "new"
	StatusAcknowledged = "acknowledged"
	StatusResolved     = "resolved"
)

var statusRank = map[string]int{
	StatusNew:          0,
	StatusAcknowledged: 1,
	StatusResolved:     2,
}

// CanTransition reports whether from -> to moves the request forward.
// Skipping straight to resolved is allowed.
func CanTransition(from, to string) bool {
	f, ok := statusRank[from]
	if !ok {
		return false
	}
	t, ok := statusRank[to]
	return ok && t > f
}

type Emergency struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	PatientName string    `db:"patient_name" json:"patient_name"`
	Symptoms    string    `db:"symptoms" json:"symptoms"`
	Status      string    `db:"status" json:"status"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type RaiseRequest struct {
	Symptoms string `json:"symptoms"`
}

type StatusRequest struct {
	Status string `json:"status"`
}
