// Package casenotes stores SOAP case notes and their file attachments.
package casenotes

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("case note not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrEmailRequired      = errors.New("patient email is required")
	ErrEmptyNote          = errors.New("at least one SOAP section is required")
)

type Attachment struct {
	BlobID      string `json:"blob_id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type CaseNote struct {
	ID             uuid.UUID    `db:"id" json:"id"`
	PatientEmail   string       `db:"patient_email" json:"patient_email"`
	PractitionerID uuid.UUID    `db:"practitioner_id" json:"practitioner_id"`
	Subjective     string       `db:"subjective" json:"subjective"`
	Objective      string       `db:"objective" json:"objective"`
	Assessment     string       `db:"assessment" json:"assessment"`
	Plan           string       `db:"plan" json:"plan"`
	Attachments    []Attachment `db:"attachments" json:"attachments"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// Empty reports whether every SOAP section is blank.
func (n *CaseNote) Empty() bool {
	return strings.TrimSpace(n.Subjective+n.Objective+n.Assessment+n.Plan) == ""
}

type CreateRequest struct {
	PatientEmail string `json:"patient_email"`
	Subjective   string `json:"subjective"`
	Objective    string `json:"objective"`
	Assessment   string `json:"assessment"`
	Plan         string `json:"plan"`
}

// UpdateRequest replaces only the sections that are set.
type UpdateRequest struct {
	Subjective *string `json:"subjective"`
	Objective  *string `json:"objective"`
	Assessment *string `json:"assessment"`
	Plan       *string `json:"plan"`
}
