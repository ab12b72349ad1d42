package emergency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayursutra/portal/internal/domain/identity"
	"github.com/ayursutra/portal/internal/platform/metrics"
	"github.com/ayursutra/portal/internal/platform/notification"
	"github.com/ayursutra/portal/internal/platform/websocket"
)

// AccountLookup resolves the patient raising the request.
type AccountLookup interface {
	Lookup(ctx context.Context, id uuid.UUID) (*identity.Account, error)
}

// Notifier sends templated email.
type Notifier interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

type Service struct {
	repo       Repository
	people     AccountLookup
	notifier   Notifier
	events     websocket.EventPublisher
	metrics    *metrics.PortalMetrics
	staffEmail string
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(repo Repository, people AccountLookup, logger zerolog.Logger) *Service {
	return &Service{repo: repo, people: people, logger: logger, now: time.Now}
}

// SetNotifier routes staff alerts by email to staffEmail.
func (s *Service) SetNotifier(n Notifier, staffEmail string) {
	s.notifier = n
	s.staffEmail = staffEmail
}

func (s *Service) SetPublisher(p websocket.EventPublisher) { s.events = p }

func (s *Service) SetMetrics(m *metrics.PortalMetrics) { s.metrics = m }

// Raise records the request and alerts staff. Alert delivery failures are
// logged and never fail the request.
func (s *Service) Raise(ctx context.Context, userID uuid.UUID, req RaiseRequest) (*Emergency, error) {
	symptoms := strings.TrimSpace(req.Symptoms)
	if symptoms == "" {
		return nil, ErrSymptomsRequired
	}
	acct, err := s.people.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	e := &Emergency{
		ID:          uuid.New(),
		UserID:      userID,
		PatientName: acct.Name,
		Symptoms:    symptoms,
		Status:      StatusNew,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if e.PatientName == "" {
		e.PatientName = acct.Email
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("record emergency: %w", err)
	}
	s.metrics.EmergencyRaised()
	s.logger.Warn().Str("emergency_id", e.ID.String()).Str("user_id", userID.String()).Msg("emergency raised")

	s.publish(ctx, e, "emergency.raised")
	s.alertStaff(ctx, e)
	return e, nil
}

func (s *Service) alertStaff(ctx context.Context, e *Emergency) {
	if s.notifier == nil || s.staffEmail == "" {
		s.logger.Warn().Str("emergency_id", e.ID.String()).Msg("no staff alert email configured")
		return
	}
	data := map[string]string{
		"patient_name": e.PatientName,
		"symptoms":     e.Symptoms,
		"submitted_at": e.SubmittedAt.Format(time.RFC1123),
		"emergency_id": e.ID.String(),
	}
	if _, err := s.notifier.SendFromTemplate(ctx, notification.TemplateEmergencyAlert, data, s.staffEmail); err != nil {
		s.metrics.NotificationFailed("email")
		s.logger.Error().Err(err).Str("emergency_id", e.ID.String()).Msg("staff alert not delivered")
	}
}

func (s *Service) publish(ctx context.Context, e *Emergency, event string) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, websocket.NewEvent(websocket.TopicStaff, event, "Emergency", e.ID.String(), e)); err != nil {
		s.logger.Warn().Err(err).Msg("publish emergency event")
	}
}

func (s *Service) List(ctx context.Context, status string) ([]*Emergency, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != "" {
		if _, ok := statusRank[status]; !ok {
			return nil, ErrInvalidStatus
		}
	}
	items, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list emergencies: %w", err)
	}
	if items == nil {
		items = []*Emergency{}
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Emergency, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Emergency, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if _, ok := statusRank[status]; !ok {
		return nil, ErrInvalidStatus
	}
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(e.Status, status) {
		return nil, fmt.Errorf("%s -> %s: %w", e.Status, status, ErrInvalidTransition)
	}
	e.Status = status
	e.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	s.publish(ctx, e, "emergency."+status)
	return e, nil
}
