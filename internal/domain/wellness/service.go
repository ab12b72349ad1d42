package wellness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayursutra/portal/internal/domain/identity"
	"github.com/ayursutra/portal/internal/platform/auth"
)

// AccountLookup resolves the patient a plan or series belongs to.
type AccountLookup interface {
	Lookup(ctx context.Context, id uuid.UUID) (*identity.Account, error)
}

type Service struct {
	repo   Repository
	plans  Plans
	people AccountLookup
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, plans Plans, people AccountLookup, logger zerolog.Logger) *Service {
	return &Service{repo: repo, plans: plans, people: people, logger: logger, now: time.Now}
}

func (s *Service) Plan(dosha string) (Plan, error) {
	return s.plans.Get(dosha)
}

// MyPlan returns the plan for the dosha on the patient's profile.
func (s *Service) MyPlan(ctx context.Context, patientID uuid.UUID) (Plan, error) {
	acct, err := s.people.Lookup(ctx, patientID)
	if err != nil {
		return Plan{}, err
	}
	if strings.TrimSpace(acct.Dosha) == "" {
		return Plan{}, ErrNoDosha
	}
	return s.plans.Get(acct.Dosha)
}

func (s *Service) requirePatient(ctx context.Context, patientID uuid.UUID) error {
	acct, err := s.people.Lookup(ctx, patientID)
	if err != nil {
		return err
	}
	if acct.Role != auth.RolePatient {
		return ErrNotPatient
	}
	return nil
}

func (s *Service) Record(ctx context.Context, patientID uuid.UUID, req RecordRequest) (*Entry, error) {
	metric := strings.ToLower(strings.TrimSpace(req.Metric))
	if _, ok := LookupMetric(metric); !ok {
		return nil, ErrUnknownMetric
	}
	if req.Value <= 0 {
		return nil, ErrInvalidValue
	}
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	e := &Entry{
		ID:         uuid.New(),
		PatientID:  patientID,
		Metric:     metric,
		Value:      req.Value,
		RecordedAt: s.now().UTC(),
		Note:       strings.TrimSpace(req.Note),
	}
	if req.RecordedAt != nil && !req.RecordedAt.IsZero() {
		e.RecordedAt = req.RecordedAt.UTC()
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("record progress: %w", err)
	}
	s.logger.Debug().Str("patient_id", patientID.String()).Str("metric", metric).Msg("progress recorded")
	return e, nil
}

func (s *Service) Series(ctx context.Context, patientID uuid.UUID, metric string) (*Series, error) {
	metric = strings.ToLower(strings.TrimSpace(metric))
	info, ok := LookupMetric(metric)
	if !ok {
		return nil, ErrUnknownMetric
	}
	entries, err := s.repo.ListByMetric(ctx, patientID, metric)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	out := &Series{Metric: metric, Label: info.Label, Points: make([]Point, 0, len(entries))}
	for _, e := range entries {
		out.Points = append(out.Points, Point{RecordedAt: e.RecordedAt, Value: e.Value})
	}
	return out, nil
}

// Chart writes the metric's line chart as a standalone HTML page.
func (s *Service) Chart(ctx context.Context, patientID uuid.UUID, metric string, w io.Writer) error {
	series, err := s.Series(ctx, patientID, metric)
	if err != nil {
		return err
	}
	return RenderChart(series, w)
}

// IsNotFound reports lookup failures for the patient behind a request.
func IsNotFound(err error) bool {
	return errors.Is(err, identity.ErrNotFound) || errors.Is(err, ErrPlanNotFound)
}
