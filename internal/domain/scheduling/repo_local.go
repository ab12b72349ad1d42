package scheduling

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ayursutra/portal/internal/platform/localstore"
)

const AppointmentsKey = "appointments_v1"

type repoLocal struct {
	store *localstore.Store
	appts *localstore.Collection[Appointment]
}

func NewRepoLocal(s *localstore.Store) Repository {
	return &repoLocal{store: s, appts: localstore.NewCollection[Appointment](s, AppointmentsKey)}
}

func (r *repoLocal) Create(ctx context.Context, a *Appointment) error {
	return r.appts.Append(ctx, *a)
}

func (r *repoLocal) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok, err := r.appts.Find(ctx, func(a Appointment) bool { return a.ID == id })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *repoLocal) Update(ctx context.Context, a *Appointment) error {
	return r.appts.Mutate(ctx, func(items []Appointment) ([]Appointment, error) {
		for i := range items {
			if items[i].ID == a.ID {
				items[i].Start = a.Start
				items[i].Status = a.Status
				items[i].Notes = a.Notes
				items[i].UpdatedAt = a.UpdatedAt
				return items, nil
			}
		}
		return nil, ErrNotFound
	})
}

func (r *repoLocal) filter(ctx context.Context, keep func(Appointment) bool) ([]*Appointment, error) {
	all, err := r.appts.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Appointment
	for i := range all {
		if keep(all[i]) {
			out = append(out, &all[i])
		}
	}
	return out, nil
}

func newestFirst(items []*Appointment) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Start.After(items[j].Start) })
}

func oldestFirst(items []*Appointment) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Start.Before(items[j].Start) })
}

func (r *repoLocal) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	out, err := r.filter(ctx, func(a Appointment) bool { return a.PatientID == patientID })
	newestFirst(out)
	return out, err
}

func (r *repoLocal) ListByPatientEmail(ctx context.Context, email string) ([]*Appointment, error) {
	out, err := r.filter(ctx, func(a Appointment) bool { return a.PatientEmail == email })
	newestFirst(out)
	return out, err
}

func (r *repoLocal) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, f PractitionerFilter) ([]*Appointment, error) {
	out, err := r.filter(ctx, func(a Appointment) bool {
		if a.PractitionerID != practitionerID {
			return false
		}
		if f.Status != "" && a.Status != f.Status {
			return false
		}
		if !f.From.IsZero() && a.Start.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && !a.Start.Before(f.To) {
			return false
		}
		return true
	})
	oldestFirst(out)
	return out, err
}

func (r *repoLocal) ListOverlapping(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	out, err := r.filter(ctx, func(a Appointment) bool {
		return a.PractitionerID == practitionerID && a.Status != StatusCancelled &&
			Overlaps(a.Start, a.End(), from, to)
	})
	oldestFirst(out)
	return out, err
}

func (r *repoLocal) WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, fn func(ctx context.Context) error) error {
	unlock := r.store.Lock("practitioner:" + practitionerID.String())
	defer unlock()
	return fn(ctx)
}
