// Package patients keeps the doctor-managed patient records, keyed by email.
package patients

import (
	"errors"
	"strings"
	"time"

	"github.com/ayursutra/portal/internal/domain/scheduling"
)

var (
	ErrNotFound        = errors.New("patient record not found")
	ErrExists          = errors.New("a record for this email already exists")
	ErrEmailRequired   = errors.New("a valid email is required")
	ErrAllergyRequired = errors.New("allergy must not be empty")
	ErrHistoryRequired = errors.New("history entry must not be empty")
	ErrIndexOutOfRange = errors.New("allergy index out of range")
	ErrInvalidDOB      = errors.New("dob must be YYYY-MM-DD")
)

type PatientRecord struct {
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	DOB       string    `db:"dob" json:"dob,omitempty"`
	Allergies []string  `db:"allergies" json:"allergies"`
	History   []string  `db:"history" json:"history"`
	Notes     string    `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Patch carries a merge update. Nil fields are left unchanged.
type Patch struct {
	Name    *string   `json:"name"`
	Phone   *string   `json:"phone"`
	DOB     *string   `json:"dob"`
	Notes   *string   `json:"notes"`
	History *[]string `json:"history"`
}

// Detail is a record together with the patient's appointments, newest first.
type Detail struct {
	*PatientRecord
	Appointments []*scheduling.Appointment `json:"appointments"`
}

// Matches reports whether search occurs in the record's name, email or phone,
// ignoring case. search must already be lower case.
func (rec *PatientRecord) Matches(search string) bool {
	if search == "" {
		return true
	}
	for _, field := range []string{rec.Name, rec.Email, rec.Phone} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}
