package scheduling

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayursutra/portal/internal/domain/cart"
	"github.com/ayursutra/portal/internal/domain/identity"
	"github.com/ayursutra/portal/internal/platform/auth"
	"github.com/ayursutra/portal/internal/platform/metrics"
	"github.com/ayursutra/portal/internal/platform/notification"
	"github.com/ayursutra/portal/internal/platform/websocket"
)

// CartStore is the part of the cart service booking needs.
type CartStore interface {
	Get(ctx context.Context, userID string) (*cart.Cart, error)
	Replace(ctx context.Context, userID string, items []cart.Item) (*cart.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// AccountLookup resolves patients and practitioners by account id.
type AccountLookup interface {
	Lookup(ctx context.Context, id uuid.UUID) (*identity.Account, error)
}

// Notifier sends templated email.
type Notifier interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	openingHour  = 9
	closingHour  = 18
	slotInterval = 15 * time.Minute
)

type Service struct {
	repo     Repository
	carts    CartStore
	people   AccountLookup
	events   websocket.EventPublisher
	notifier Notifier
	metrics  *metrics.PortalMetrics
	logger   zerolog.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo Repository, carts CartStore, people AccountLookup, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, carts: carts, people: people, loc: loc, logger: logger, now: time.Now}
}

// SetPublisher attaches the live feed. Without one no events are pushed.
func (s *Service) SetPublisher(p websocket.EventPublisher) { s.events = p }

// SetNotifier attaches patient email notifications.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

func (s *Service) SetMetrics(m *metrics.PortalMetrics) { s.metrics = m }

func (s *Service) today() string {
	return s.now().In(s.loc).Format(dateLayout)
}

// parseStart interprets date and clock time in the clinic's zone.
func (s *Service) parseStart(date, clock string) (time.Time, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if _, err := time.Parse(dateLayout, date); err != nil {
		return time.Time{}, ErrInvalidDate
	}
	if _, err := time.Parse(timeLayout, clock); err != nil {
		return time.Time{}, ErrInvalidTime
	}
	start, err := time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+clock, s.loc)
	if err != nil {
		return time.Time{}, err
	}
	if date < s.today() {
		return time.Time{}, ErrPastDate
	}
	return start, nil
}

// isUpcoming: starts today or later and is not cancelled.
func (s *Service) isUpcoming(a *Appointment) bool {
	return a.Status != StatusCancelled && a.Start.In(s.loc).Format(dateLayout) >= s.today()
}

func (s *Service) Book(ctx context.Context, patientID uuid.UUID, req BookRequest) (*Appointment, error) {
	current, err := s.carts.Get(ctx, patientID.String())
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(current.Items) == 0 {
		return nil, ErrEmptyCart
	}
	start, err := s.parseStart(req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	center := strings.TrimSpace(req.Center)
	if center == "" {
		return nil, ErrCenterRequired
	}
	practitionerID, err := uuid.Parse(req.PractitionerID)
	if err != nil {
		return nil, ErrPractitionerRequired
	}
	practitioner, err := s.people.Lookup(ctx, practitionerID)
	if err != nil || practitioner.Role != auth.RoleDoctor {
		return nil, ErrPractitionerNotFound
	}
	patient, err := s.people.Lookup(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("lookup patient: %w", err)
	}

	now := s.now().UTC()
	a := &Appointment{
		ID:               uuid.New(),
		PatientID:        patientID,
		PatientName:      patient.Name,
		PatientEmail:     patient.Email,
		PractitionerID:   practitionerID,
		PractitionerName: practitioner.Name,
		Center:           center,
		Start:            start,
		DurationMin:      current.TotalDurationMin,
		Treatments:       current.Items,
		TotalPrice:       current.Total,
		Notes:            strings.TrimSpace(req.Notes),
		Status:           StatusConfirmed,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.repo.WithPractitionerLock(ctx, practitionerID, func(ctx context.Context) error {
		if err := s.checkConflict(ctx, a); err != nil {
			return err
		}
		return s.repo.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	if err := s.carts.Clear(ctx, patientID.String()); err != nil {
		s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("clear cart after booking")
	}
	s.logger.Info().Str("appointment_id", a.ID.String()).Str("practitioner_id", practitionerID.String()).
		Time("start", a.Start).Msg("appointment booked")
	s.afterChange(ctx, a, "appointment.booked", notification.TemplateAppointmentBooked)
	return a, nil
}

// checkConflict must run under the practitioner lock.
func (s *Service) checkConflict(ctx context.Context, a *Appointment) error {
	others, err := s.repo.ListOverlapping(ctx, a.PractitionerID, a.Start, a.End())
	if err != nil {
		return err
	}
	for _, o := range others {
		if o.ID == a.ID || o.Status == StatusCancelled {
			continue
		}
		if Overlaps(a.Start, a.End(), o.Start, o.End()) {
			s.metrics.Conflict()
			s.logger.Info().Str("appointment_id", a.ID.String()).Str("conflicts_with", o.ID.String()).
				Msg("appointment time conflict")
			return ErrConflict
		}
	}
	return nil
}

func (s *Service) ListMine(ctx context.Context, patientID uuid.UUID) (*MyAppointments, error) {
	all, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	out := &MyAppointments{Upcoming: []*Appointment{}, Past: []*Appointment{}}
	for _, a := range all {
		if s.isUpcoming(a) {
			out.Upcoming = append(out.Upcoming, a)
		} else {
			out.Past = append(out.Past, a)
		}
	}
	return out, nil
}

func canView(actor Actor, a *Appointment) bool {
	switch actor.Role {
	case auth.RolePatient:
		return a.PatientID == actor.ID
	case auth.RoleDoctor:
		return a.PractitionerID == actor.ID
	}
	return false
}

func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, a) {
		return nil, ErrForbidden
	}
	return a, nil
}

// Cancel runs under the practitioner lock so it cannot interleave with a
// reschedule or session change of the same appointment.
func (s *Service) Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	err = s.repo.WithPractitionerLock(ctx, a.PractitionerID, func(ctx context.Context) error {
		cur, err := s.Get(ctx, actor, id)
		if err != nil {
			return err
		}
		if cur.Status == StatusCancelled || cur.Status == StatusCompleted {
			return ErrInvalidTransition
		}
		cur.Status = StatusCancelled
		cur.UpdatedAt = s.now().UTC()
		a = cur
		return s.repo.Update(ctx, cur)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("appointment_id", a.ID.String()).Str("by", actor.Role).Msg("appointment cancelled")
	s.afterChange(ctx, a, "appointment.cancelled", notification.TemplateAppointmentCancelled)
	return a, nil
}

// RescheduleToCart cancels an upcoming appointment and puts its treatments
// back in the cart so the patient can pick a new slot. The cart is filled
// first and restored if the cancel fails.
func (s *Service) RescheduleToCart(ctx context.Context, patientID, id uuid.UUID) (*cart.Cart, error) {
	actor := Actor{ID: patientID, Role: auth.RolePatient}
	a, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !s.isUpcoming(a) {
		return nil, ErrNotUpcoming
	}
	previous, err := s.carts.Get(ctx, patientID.String())
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	restored, err := s.carts.Replace(ctx, patientID.String(), a.Treatments)
	if err != nil {
		return nil, fmt.Errorf("restore treatments to cart: %w", err)
	}
	if _, err := s.Cancel(ctx, actor, id); err != nil {
		if _, rerr := s.carts.Replace(ctx, patientID.String(), previous.Items); rerr != nil {
			s.logger.Error().Err(rerr).Str("patient_id", patientID.String()).Msg("roll back cart after failed cancel")
		}
		return nil, err
	}
	return restored, nil
}

// BookAgain copies a past or cancelled appointment's treatments into the cart.
func (s *Service) BookAgain(ctx context.Context, patientID, id uuid.UUID) (*cart.Cart, error) {
	a, err := s.Get(ctx, Actor{ID: patientID, Role: auth.RolePatient}, id)
	if err != nil {
		return nil, err
	}
	if s.isUpcoming(a) {
		return nil, ErrInvalidTransition
	}
	return s.carts.Replace(ctx, patientID.String(), a.Treatments)
}

// Reschedule moves an appointment to a new start for the practitioner who owns
// it. The move is refused when it would overlap another live appointment.
func (s *Service) Reschedule(ctx context.Context, doctorID, id uuid.UUID, req RescheduleRequest) (*Appointment, error) {
	start, err := s.parseStart(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	var out *Appointment
	err = s.repo.WithPractitionerLock(ctx, doctorID, func(ctx context.Context) error {
		a, err := s.Get(ctx, Actor{ID: doctorID, Role: auth.RoleDoctor}, id)
		if err != nil {
			return err
		}
		if a.Status == StatusCompleted || a.Status == StatusInSession {
			return ErrInvalidTransition
		}
		a.Start = start
		if err := s.checkConflict(ctx, a); err != nil {
			return err
		}
		a.Status = StatusConfirmed
		a.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("appointment_id", out.ID.String()).Time("start", out.Start).Msg("appointment rescheduled")
	s.afterChange(ctx, out, "appointment.rescheduled", notification.TemplateAppointmentRescheduled)
	return out, nil
}

func (s *Service) transition(ctx context.Context, doctorID, id uuid.UUID, from, to, event string) (*Appointment, error) {
	actor := Actor{ID: doctorID, Role: auth.RoleDoctor}
	var a *Appointment
	err := s.repo.WithPractitionerLock(ctx, doctorID, func(ctx context.Context) error {
		var err error
		if a, err = s.Get(ctx, actor, id); err != nil {
			return err
		}
		if a.Status != from {
			return ErrInvalidTransition
		}
		a.Status = to
		a.UpdatedAt = s.now().UTC()
		return s.repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	s.afterChange(ctx, a, event, "")
	return a, nil
}

func (s *Service) StartSession(ctx context.Context, doctorID, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, doctorID, id, StatusConfirmed, StatusInSession, "appointment.started")
}

func (s *Service) Complete(ctx context.Context, doctorID, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, doctorID, id, StatusInSession, StatusCompleted, "appointment.completed")
}

// ListForPractitioner returns the doctor's queue, oldest first. date, when
// set, limits the queue to that clinic day.
func (s *Service) ListForPractitioner(ctx context.Context, doctorID uuid.UUID, status, date string) ([]*Appointment, error) {
	f := PractitionerFilter{Status: strings.ToLower(strings.TrimSpace(status))}
	if date != "" {
		day, err := time.ParseInLocation(dateLayout, date, s.loc)
		if err != nil {
			return nil, ErrInvalidDate
		}
		f.From, f.To = day, day.AddDate(0, 0, 1)
	}
	return s.repo.ListByPractitioner(ctx, doctorID, f)
}

// ListByPatientEmail backs the doctor's patient detail view.
func (s *Service) ListByPatientEmail(ctx context.Context, email string) ([]*Appointment, error) {
	return s.repo.ListByPatientEmail(ctx, identity.NormalizeEmail(email))
}

// Availability lists free start times for a practitioner on date, between
// clinic opening and closing, for a visit of durationMin minutes.
func (s *Service) Availability(ctx context.Context, practitionerID uuid.UUID, date string, durationMin int) ([]Slot, error) {
	day, err := time.ParseInLocation(dateLayout, date, s.loc)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if durationMin <= 0 {
		durationMin = 30
	}
	open := day.Add(openingHour * time.Hour)
	closing := day.Add(closingHour * time.Hour)
	busy, err := s.repo.ListOverlapping(ctx, practitionerID, open, closing)
	if err != nil {
		return nil, err
	}

	now := s.now()
	length := time.Duration(durationMin) * time.Minute
	slots := []Slot{}
	for start := open; !start.Add(length).After(closing); start = start.Add(slotInterval) {
		end := start.Add(length)
		if start.Before(now) {
			continue
		}
		free := true
		for _, b := range busy {
			if Overlaps(start, end, b.Start, b.End()) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, Slot{Start: start, End: end})
		}
	}
	return slots, nil
}

// afterChange pushes the live event and, when templateID is set, emails the
// patient. Neither failure affects the caller.
func (s *Service) afterChange(ctx context.Context, a *Appointment, event, templateID string) {
	s.metrics.AppointmentEvent(strings.TrimPrefix(event, "appointment."))

	if s.events != nil {
		for _, topic := range []string{websocket.PractitionerTopic(a.PractitionerID.String()), websocket.PatientTopic(a.PatientID.String())} {
			if err := s.events.Publish(ctx, websocket.NewEvent(topic, event, "Appointment", a.ID.String(), a)); err != nil {
				s.logger.Warn().Err(err).Str("topic", topic).Msg("publish appointment event")
			}
		}
	}

	if s.notifier == nil || templateID == "" || a.PatientEmail == "" {
		return
	}
	local := a.Start.In(s.loc)
	names := make([]string, 0, len(a.Treatments))
	for _, t := range a.Treatments {
		names = append(names, t.Name)
	}
	data := map[string]string{
		"patient_name": a.PatientName,
		"practitioner": a.PractitionerName,
		"center":       a.Center,
		"date":         local.Format(dateLayout),
		"time":         local.Format(timeLayout),
		"treatments":   strings.Join(names, ", "),
		"total":        strconv.Itoa(a.TotalPrice),
	}
	if _, err := s.notifier.SendFromTemplate(ctx, templateID, data, a.PatientEmail); err != nil {
		s.metrics.NotificationFailed("email")
		s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("appointment email not delivered")
	}
}
