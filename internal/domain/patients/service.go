package patients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayursutra/portal/internal/domain/identity"
	"github.com/ayursutra/portal/internal/domain/scheduling"
)

// AppointmentSource lists a patient's appointments for the detail view.
type AppointmentSource interface {
	ListByPatientEmail(ctx context.Context, email string) ([]*scheduling.Appointment, error)
}

type Service struct {
	repo         Repository
	appointments AppointmentSource
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(repo Repository, appointments AppointmentSource, logger zerolog.Logger) *Service {
	return &Service{repo: repo, appointments: appointments, logger: logger, now: time.Now}
}

func normalizeEmail(email string) (string, error) {
	email = identity.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") || strings.ContainsAny(email, " <>") {
		return "", ErrEmailRequired
	}
	return email, nil
}

func validDOB(dob string) error {
	if dob == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", dob); err != nil {
		return ErrInvalidDOB
	}
	return nil
}

// cleanList trims entries, drops blanks and removes duplicates, keeping order.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func (s *Service) Create(ctx context.Context, rec PatientRecord) (*PatientRecord, error) {
	email, err := normalizeEmail(rec.Email)
	if err != nil {
		return nil, err
	}
	rec.Email = email
	rec.Name = strings.TrimSpace(rec.Name)
	rec.Phone = strings.TrimSpace(rec.Phone)
	rec.DOB = strings.TrimSpace(rec.DOB)
	rec.Notes = strings.TrimSpace(rec.Notes)
	if err := validDOB(rec.DOB); err != nil {
		return nil, err
	}
	rec.Allergies = cleanList(rec.Allergies)
	rec.History = cleanList(rec.History)
	now := s.now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now

	if err := s.repo.Create(ctx, &rec); err != nil {
		return nil, err
	}
	s.logger.Info().Str("email", rec.Email).Msg("patient record created")
	return &rec, nil
}

// Get returns the record with the patient's appointments attached.
func (s *Service) Get(ctx context.Context, email string) (*Detail, error) {
	email = identity.NormalizeEmail(email)
	rec, err := s.repo.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	d := &Detail{PatientRecord: rec, Appointments: []*scheduling.Appointment{}}
	if s.appointments != nil {
		appts, err := s.appointments.ListByPatientEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("list appointments for %s: %w", email, err)
		}
		if appts != nil {
			d.Appointments = appts
		}
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, search string) ([]*PatientRecord, error) {
	out, err := s.repo.List(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, fmt.Errorf("list patient records: %w", err)
	}
	if out == nil {
		out = []*PatientRecord{}
	}
	return out, nil
}

func (s *Service) modify(ctx context.Context, email string, fn func(rec *PatientRecord) error) (*PatientRecord, error) {
	return s.repo.Modify(ctx, identity.NormalizeEmail(email), func(rec *PatientRecord) error {
		if err := fn(rec); err != nil {
			return err
		}
		rec.UpdatedAt = s.now().UTC()
		return nil
	})
}

func (s *Service) Update(ctx context.Context, email string, p Patch) (*PatientRecord, error) {
	if p.DOB != nil {
		if err := validDOB(strings.TrimSpace(*p.DOB)); err != nil {
			return nil, err
		}
	}
	return s.modify(ctx, email, func(rec *PatientRecord) error {
		if p.Name != nil {
			rec.Name = strings.TrimSpace(*p.Name)
		}
		if p.Phone != nil {
			rec.Phone = strings.TrimSpace(*p.Phone)
		}
		if p.DOB != nil {
			rec.DOB = strings.TrimSpace(*p.DOB)
		}
		if p.Notes != nil {
			rec.Notes = strings.TrimSpace(*p.Notes)
		}
		if p.History != nil {
			rec.History = cleanList(*p.History)
		}
		return nil
	})
}

// AddAllergy appends allergy unless the record already lists it.
func (s *Service) AddAllergy(ctx context.Context, email, allergy string) (*PatientRecord, error) {
	allergy = strings.TrimSpace(allergy)
	if allergy == "" {
		return nil, ErrAllergyRequired
	}
	return s.modify(ctx, email, func(rec *PatientRecord) error {
		for _, a := range rec.Allergies {
			if a == allergy {
				return nil
			}
		}
		rec.Allergies = append(rec.Allergies, allergy)
		return nil
	})
}

func (s *Service) RemoveAllergy(ctx context.Context, email string, index int) (*PatientRecord, error) {
	return s.modify(ctx, email, func(rec *PatientRecord) error {
		if index < 0 || index >= len(rec.Allergies) {
			return ErrIndexOutOfRange
		}
		rec.Allergies = append(rec.Allergies[:index:index], rec.Allergies[index+1:]...)
		return nil
	})
}

func (s *Service) AddHistory(ctx context.Context, email, entry string) (*PatientRecord, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil, ErrHistoryRequired
	}
	return s.modify(ctx, email, func(rec *PatientRecord) error {
		rec.History = append(rec.History, entry)
		return nil
	})
}
