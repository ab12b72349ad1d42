package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	// ListByPatient returns newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)
	// ListByPatientEmail returns newest first.
	ListByPatientEmail(ctx context.Context, email string) ([]*Appointment, error)
	// ListByPractitioner returns oldest first.
	ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, f PractitionerFilter) ([]*Appointment, error)
	// ListOverlapping returns the practitioner's non-cancelled appointments
	// that intersect [from, to).
	ListOverlapping(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]*Appointment, error)
	// WithPractitionerLock serializes fn against other writers of the same
	// practitioner's schedule.
	WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, fn func(ctx context.Context) error) error
}
