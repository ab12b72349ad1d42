package scheduling

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ayursutra/portal/internal/domain/cart"
)

const (
	StatusConfirmed = "confirmed"
	StatusInSession = "in_session"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var (
	ErrNotFound             = errors.New("appointment not found")
	ErrForbidden            = errors.New("not allowed to act on this appointment")
	ErrConflict             = errors.New("practitioner already has an appointment in that time range")
	ErrInvalidTransition    = errors.New("appointment status does not allow this change")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrPastDate             = errors.New("date cannot be in the past")
	ErrNotUpcoming          = errors.New("only upcoming appointments can be rescheduled")
	ErrPractitionerNotFound = errors.New("practitioner not found")

	ErrInvalidDate          = errors.New("date must be YYYY-MM-DD")
	ErrInvalidTime          = errors.New("time must be HH:MM")
	ErrCenterRequired       = errors.New("center is required")
	ErrPractitionerRequired = errors.New("practitioner_id is required")
)

// Appointment is a booking of one or more treatments with a practitioner.
type Appointment struct {
	ID               uuid.UUID   `db:"id" json:"id"`
	PatientID        uuid.UUID   `db:"patient_id" json:"patient_id"`
	PatientName      string      `db:"patient_name" json:"patient_name"`
	PatientEmail     string      `db:"patient_email" json:"patient_email"`
	PractitionerID   uuid.UUID   `db:"practitioner_id" json:"practitioner_id"`
	PractitionerName string      `db:"practitioner_name" json:"practitioner_name"`
	Center           string      `db:"center" json:"center"`
	Start            time.Time   `db:"start_at" json:"start"`
	DurationMin      int         `db:"duration_min" json:"duration_min"`
	Treatments       []cart.Item `db:"treatments" json:"treatments"`
	TotalPrice       int         `db:"total_price" json:"total_price"`
	Notes            string      `db:"notes" json:"notes,omitempty"`
	Status           string      `db:"status" json:"status"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

func (a *Appointment) End() time.Time {
	return a.Start.Add(time.Duration(a.DurationMin) * time.Minute)
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect, that is
// max(starts) < min(ends). Touching intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	return start.Before(end)
}

type BookRequest struct {
	Date           string `json:"date"`
	Time           string `json:"time"`
	Center         string `json:"center"`
	PractitionerID string `json:"practitioner_id"`
	Notes          string `json:"notes"`
}

type RescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// MyAppointments is the patient view split the way the portal shows it.
type MyAppointments struct {
	Upcoming []*Appointment `json:"upcoming"`
	Past     []*Appointment `json:"past"`
}

// PractitionerFilter narrows a practitioner's queue. Zero values match all.
type PractitionerFilter struct {
	Status string
	From   time.Time
	To     time.Time
}

// Actor is the authenticated caller.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// Slot is a free start time returned by Availability.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
