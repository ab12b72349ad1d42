package scheduling

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayursutra/portal/internal/domain/cart"
	"github.com/ayursutra/portal/internal/domain/catalog"
	"github.com/ayursutra/portal/internal/domain/identity"
	"github.com/ayursutra/portal/internal/platform/auth"
	"github.com/ayursutra/portal/internal/platform/notification"
	"github.com/ayursutra/portal/internal/platform/websocket"
)

// -- Mocks --

type mockRepo struct {
	mu    sync.Mutex
	lock  sync.Mutex
	appts map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) list(keep func(*Appointment) bool, asc bool) []*Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Appointment
	for _, a := range m.appts {
		if keep(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if asc {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].Start.After(out[j].Start)
	})
	return out
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return m.list(func(a *Appointment) bool { return a.PatientID == patientID }, false), nil
}

func (m *mockRepo) ListByPatientEmail(_ context.Context, email string) ([]*Appointment, error) {
	return m.list(func(a *Appointment) bool { return a.PatientEmail == email }, false), nil
}

func (m *mockRepo) ListByPractitioner(_ context.Context, pid uuid.UUID, f PractitionerFilter) ([]*Appointment, error) {
	return m.list(func(a *Appointment) bool {
		return a.PractitionerID == pid && (f.Status == "" || a.Status == f.Status) &&
			(f.From.IsZero() || !a.Start.Before(f.From)) && (f.To.IsZero() || a.Start.Before(f.To))
	}, true), nil
}

func (m *mockRepo) ListOverlapping(_ context.Context, pid uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	return m.list(func(a *Appointment) bool {
		return a.PractitionerID == pid && a.Status != StatusCancelled && Overlaps(a.Start, a.End(), from, to)
	}, true), nil
}

func (m *mockRepo) WithPractitionerLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	return fn(ctx)
}

// hookRepo injects failures and a callback into the practitioner's
// overlap query, which only runs while the practitioner lock is held.
type hookRepo struct {
	*mockRepo
	createErr error
	updateErr error
	onOverlap func()
}

func (h *hookRepo) Create(ctx context.Context, a *Appointment) error {
	if h.createErr != nil {
		return h.createErr
	}
	return h.mockRepo.Create(ctx, a)
}

func (h *hookRepo) Update(ctx context.Context, a *Appointment) error {
	if h.updateErr != nil {
		return h.updateErr
	}
	return h.mockRepo.Update(ctx, a)
}

func (h *hookRepo) ListOverlapping(ctx context.Context, pid uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	if h.onOverlap != nil {
		h.onOverlap()
	}
	return h.mockRepo.ListOverlapping(ctx, pid, from, to)
}

type failingCarts struct {
	CartStore
	replaceErr error
}

func (f *failingCarts) Replace(ctx context.Context, userID string, items []cart.Item) (*cart.Cart, error) {
	if f.replaceErr != nil {
		return nil, f.replaceErr
	}
	return f.CartStore.Replace(ctx, userID, items)
}

type mockPeople map[uuid.UUID]*identity.Account

func (m mockPeople) Lookup(_ context.Context, id uuid.UUID) (*identity.Account, error) {
	a, ok := m[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return a, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e websocket.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type recordingNotifier struct {
	templates  []string
	recipients []string
	err        error
}

func (n *recordingNotifier) SendFromTemplate(_ context.Context, templateID string, _ map[string]string, recipient string) (*notification.Notification, error) {
	n.templates = append(n.templates, templateID)
	n.recipients = append(n.recipients, recipient)
	return &notification.Notification{}, n.err
}

// -- Fixture --

var ist = time.FixedZone("IST", 5*3600+1800)

type fixture struct {
	svc       *Service
	repo      *mockRepo
	carts     *cart.Service
	events    *recordingPublisher
	notifier  *recordingNotifier
	patient   uuid.UUID
	other     uuid.UUID
	doctor    uuid.UUID
	doctorTwo uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		repo:      newMockRepo(),
		events:    &recordingPublisher{},
		notifier:  &recordingNotifier{},
		patient:   uuid.New(),
		other:     uuid.New(),
		doctor:    uuid.New(),
		doctorTwo: uuid.New(),
	}
	f.carts = cart.NewService(cart.NewMemoryStore(), cat)
	people := mockPeople{
		f.patient:   {ID: f.patient, Role: auth.RolePatient, Name: "Meera", Email: "meera@example.com"},
		f.other:     {ID: f.other, Role: auth.RolePatient, Name: "Arjun", Email: "arjun@example.com"},
		f.doctor:    {ID: f.doctor, Role: auth.RoleDoctor, Name: "Dr. Rao"},
		f.doctorTwo: {ID: f.doctorTwo, Role: auth.RoleDoctor, Name: "Dr. Iyer"},
	}
	f.svc = NewService(f.repo, f.carts, people, ist, zerolog.Nop())
	f.svc.now = func() time.Time { return time.Date(2026, 3, 10, 10, 0, 0, 0, ist) }
	f.svc.SetPublisher(f.events)
	f.svc.SetNotifier(f.notifier)
	return f
}

func (f *fixture) fillCart(t *testing.T, patient uuid.UUID, ids ...int) {
	t.Helper()
	for _, id := range ids {
		if _, err := f.carts.Add(context.Background(), patient.String(), id); err != nil {
			t.Fatalf("cart add %d: %v", id, err)
		}
	}
}

func (f *fixture) book(t *testing.T, patient, doctor uuid.UUID, date, clock string, ids ...int) (*Appointment, error) {
	t.Helper()
	f.fillCart(t, patient, ids...)
	return f.svc.Book(context.Background(), patient, BookRequest{
		Date: date, Time: clock, Center: "Kochi", PractitionerID: doctor.String(),
	})
}

func (f *fixture) seed(patient, doctor uuid.UUID, start time.Time, status string) *Appointment {
	a := &Appointment{
		ID: uuid.New(), PatientID: patient, PatientEmail: "meera@example.com", PractitionerID: doctor,
		Start: start, DurationMin: 60, Status: status,
		Treatments: []cart.Item{{ID: 1, Name: "Abhyanga", Price: 3500, DurationMin: 60}},
	}
	_ = f.repo.Create(context.Background(), a)
	return a
}

// -- Tests --

func TestOverlaps(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 3, 11, h, m, 0, 0, ist) }
	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		want                       bool
	}{
		{"disjoint", at(9, 0), at(10, 0), at(11, 0), at(12, 0), false},
		{"touching", at(9, 0), at(10, 0), at(10, 0), at(11, 0), false},
		{"partial", at(9, 0), at(10, 0), at(9, 30), at(10, 30), true},
		{"contained", at(9, 0), at(12, 0), at(10, 0), at(10, 30), true},
		{"identical", at(9, 0), at(10, 0), at(9, 0), at(10, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := Overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd); got != tt.want {
				t.Errorf("Overlaps is not symmetric")
			}
		})
	}
}

func TestService_Book(t *testing.T) {
	f := newFixture(t)
	a, err := f.book(t, f.patient, f.doctor, "2026-03-12", "10:30", 1, 6)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	if a.DurationMin != 80 || a.TotalPrice != 5300 || a.Status != StatusConfirmed {
		t.Errorf("unexpected appointment %+v", a)
	}
	if a.PatientName != "Meera" || a.PatientEmail != "meera@example.com" || a.PractitionerName != "Dr. Rao" {
		t.Errorf("expected denormalized names, got %+v", a)
	}
	if want := time.Date(2026, 3, 12, 10, 30, 0, 0, ist); !a.Start.Equal(want) {
		t.Errorf("expected start %s, got %s", want, a.Start)
	}

	c, _ := f.carts.Get(context.Background(), f.patient.String())
	if len(c.Items) != 0 {
		t.Errorf("expected cart to be cleared, got %+v", c.Items)
	}
	if len(f.events.events) != 2 || f.events.events[0].Topic != websocket.PractitionerTopic(f.doctor.String()) {
		t.Errorf("unexpected events %+v", f.events.events)
	}
	if len(f.notifier.templates) != 1 || f.notifier.templates[0] != notification.TemplateAppointmentBooked {
		t.Errorf("expected booking email, got %v", f.notifier.templates)
	}
}

func TestService_Book_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, f.patient, BookRequest{Date: "2026-03-12", Time: "10:00", Center: "Kochi", PractitionerID: f.doctor.String()})
	if !errors.Is(err, ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got %v", err)
	}

	if _, err := f.book(t, f.patient, f.doctor, "2026-03-09", "10:00", 1); !errors.Is(err, ErrPastDate) {
		t.Errorf("expected ErrPastDate, got %v", err)
	}
	if _, err := f.book(t, f.patient, f.other, "2026-03-12", "10:00"); !errors.Is(err, ErrPractitionerNotFound) {
		t.Errorf("expected ErrPractitionerNotFound for a patient account, got %v", err)
	}
	if _, err := f.book(t, f.patient, f.doctor, "12/03/2026", "10:00"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
	if _, err := f.book(t, f.patient, f.doctor, "2026-03-12", "25:00"); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("expected ErrInvalidTime, got %v", err)
	}

	c, _ := f.carts.Get(ctx, f.patient.String())
	if len(c.Items) == 0 {
		t.Error("a failed booking must leave the cart intact")
	}
}

func TestService_Book_TodayIsAllowed(t *testing.T) {
	f := newFixture(t)
	if _, err := f.book(t, f.patient, f.doctor, "2026-03-10", "16:00", 2); err != nil {
		t.Errorf("expected booking today to succeed, got %v", err)
	}
}

func TestService_Book_Conflict(t *testing.T) {
	f := newFixture(t)
	if _, err := f.book(t, f.patient, f.doctor, "2026-03-12", "10:00", 1); err != nil {
		t.Fatalf("Book: %v", err)
	}

	if _, err := f.book(t, f.other, f.doctor, "2026-03-12", "10:30", 2); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	// The failed attempt left Shirodhara in the cart.
	_ = f.carts.Clear(context.Background(), f.other.String())

	if _, err := f.book(t, f.other, f.doctor, "2026-03-12", "11:00", 2); err != nil {
		t.Errorf("touching appointments should not conflict, got %v", err)
	}
	if _, err := f.book(t, f.other, f.doctorTwo, "2026-03-12", "10:00", 2); err != nil {
		t.Errorf("another practitioner should be free, got %v", err)
	}
}

func TestService_ListMine(t *testing.T) {
	f := newFixture(t)
	past := f.seed(f.patient, f.doctor, time.Date(2026, 3, 1, 9, 0, 0, 0, ist), StatusCompleted)
	todayEarly := f.seed(f.patient, f.doctor, time.Date(2026, 3, 10, 8, 0, 0, 0, ist), StatusConfirmed)
	future := f.seed(f.patient, f.doctor, time.Date(2026, 3, 20, 9, 0, 0, 0, ist), StatusConfirmed)
	cancelled := f.seed(f.patient, f.doctor, time.Date(2026, 3, 25, 9, 0, 0, 0, ist), StatusCancelled)
	f.seed(f.other, f.doctor, time.Date(2026, 3, 21, 9, 0, 0, 0, ist), StatusConfirmed)

	got, err := f.svc.ListMine(context.Background(), f.patient)
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if len(got.Upcoming) != 2 || got.Upcoming[0].ID != future.ID || got.Upcoming[1].ID != todayEarly.ID {
		t.Errorf("unexpected upcoming %+v", got.Upcoming)
	}
	if len(got.Past) != 2 || got.Past[0].ID != cancelled.ID || got.Past[1].ID != past.ID {
		t.Errorf("unexpected past %+v", got.Past)
	}
}

func TestService_Cancel(t *testing.T) {
	f := newFixture(t)
	a := f.seed(f.patient, f.doctor, time.Date(2026, 3, 20, 9, 0, 0, 0, ist), StatusConfirmed)
	ctx := context.Background()

	if _, err := f.svc.Cancel(ctx, Actor{ID: f.other, Role: auth.RolePatient}, a.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for another patient, got %v", err)
	}
	if _, err := f.svc.Cancel(ctx, Actor{ID: f.doctorTwo, Role: auth.RoleDoctor}, a.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for another doctor, got %v", err)
	}

	got, err := f.svc.Cancel(ctx, Actor{ID: f.patient, Role: auth.RolePatient}, a.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if _, err := f.svc.Cancel(ctx, Actor{ID: f.doctor, Role: auth.RoleDoctor}, a.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition on double cancel, got %v", err)
	}
	if _, err := f.svc.Cancel(ctx, Actor{ID: f.patient, Role: auth.RolePatient}, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_RescheduleToCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	upcoming := f.seed(f.patient, f.doctor, time.Date(2026, 3, 20, 9, 0, 0, 0, ist), StatusConfirmed)
	past := f.seed(f.patient, f.doctor, time.Date(2026, 3, 1, 9, 0, 0, 0, ist), StatusCompleted)
	f.fillCart(t, f.patient, 5)

	c, err := f.svc.RescheduleToCart(ctx, f.patient, upcoming.ID)
	if err != nil {
		t.Fatalf("RescheduleToCart: %v", err)
	}
	if len(c.Items) != 1 || c.Items[0].ID != 1 {
		t.Errorf("expected cart replaced by the appointment's treatments, got %+v", c.Items)
	}
	got, _ := f.repo.GetByID(ctx, upcoming.ID)
	if got.Status != StatusCancelled {
		t.Errorf("expected original appointment cancelled, got %s", got.Status)
	}

	if _, err := f.svc.RescheduleToCart(ctx, f.patient, past.ID); !errors.Is(err, ErrNotUpcoming) {
		t.Errorf("expected ErrNotUpcoming, got %v", err)
	}
}

func TestService_RescheduleToCart_CartFailureKeepsAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(f.patient, f.doctor, time.Date(2026, 3, 20, 9, 0, 0, 0, ist), StatusConfirmed)
	f.svc.carts = &failingCarts{CartStore: f.carts, replaceErr: cart.ErrConcurrentUpdate}

	if _, err := f.svc.RescheduleToCart(ctx, f.patient, a.ID); !errors.Is(err, cart.ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate, got %v", err)
	}
	got, _ := f.repo.GetByID(ctx, a.ID)
	if got.Status != StatusConfirmed {
		t.Errorf("a failed cart write must leave the appointment confirmed, got %s", got.Status)
	}
}

func TestService_RescheduleToCart_CancelFailureRestoresCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(f.patient, f.doctor, time.Date(2026, 3, 20, 9, 0, 0, 0, ist), StatusConfirmed)
	f.fillCart(t, f.patient, 5)
	storeDown := errors.New("connection refused")
	f.svc.repo = &hookRepo{mockRepo: f.repo, updateErr: storeDown}

	if _, err := f.svc.RescheduleToCart(ctx, f.patient, a.ID); !errors.Is(err, storeDown) {
		t.Fatalf("expected the store error, got %v", err)
	}
	c, _ := f.carts.Get(ctx, f.patient.String())
	if len(c.Items) != 1 || c.Items[0].ID != 5 {
		t.Errorf("expected the previous cart back, got %+v", c.Items)
	}
}

func TestService_BookAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := f.seed(f.patient, f.doctor, time.Date(2026, 3, 1, 9, 0, 0, 0, ist), StatusCompleted)
	upcoming := f.seed(f.patient, f.doctor, time.Date(2026, 3, 20, 9, 0, 0, 0, ist), StatusConfirmed)

	c, err := f.svc.BookAgain(ctx, f.patient, past.ID)
	if err != nil {
		t.Fatalf("BookAgain: %v", err)
	}
	if c.Total != 3500 {
		t.Errorf("unexpected cart %+v", c)
	}
	if _, err := f.svc.BookAgain(ctx, f.patient, upcoming.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for an upcoming appointment, got %v", err)
	}
	if _, err := f.svc.BookAgain(ctx, f.other, past.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestService_Reschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(f.patient, f.doctor, time.Date(2026, 3, 12, 9, 0, 0, 0, ist), StatusConfirmed)
	f.seed(f.other, f.doctor, time.Date(2026, 3, 12, 11, 0, 0, 0, ist), StatusConfirmed)
	f.seed(f.other, f.doctor, time.Date(2026, 3, 12, 14, 0, 0, 0, ist), StatusCancelled)

	_, err := f.svc.Reschedule(ctx, f.doctor, a.ID, RescheduleRequest{Date: "2026-03-12", Time: "11:30"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	got, err := f.svc.Reschedule(ctx, f.doctor, a.ID, RescheduleRequest{Date: "2026-03-12", Time: "14:00"})
	if err != nil {
		t.Fatalf("cancelled appointments must not block a move: %v", err)
	}
	if got.Start.In(ist).Hour() != 14 || got.Status != StatusConfirmed {
		t.Errorf("unexpected appointment %+v", got)
	}

	// Moving within its own old slot does not conflict with itself.
	if _, err := f.svc.Reschedule(ctx, f.doctor, a.ID, RescheduleRequest{Date: "2026-03-12", Time: "14:30"}); err != nil {
		t.Errorf("self-overlap should be ignored, got %v", err)
	}

	if _, err := f.svc.Reschedule(ctx, f.doctorTwo, a.ID, RescheduleRequest{Date: "2026-03-13", Time: "09:00"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for another doctor, got %v", err)
	}
	if len(f.notifier.templates) == 0 || f.notifier.templates[len(f.notifier.templates)-1] != notification.TemplateAppointmentRescheduled {
		t.Errorf("expected reschedule email, got %v", f.notifier.templates)
	}
}

func TestService_CancelDuringRescheduleIsSerialized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(f.patient, f.doctor, time.Date(2026, 3, 12, 9, 0, 0, 0, ist), StatusConfirmed)

	done := make(chan error, 1)
	var once sync.Once
	f.svc.repo = &hookRepo{mockRepo: f.repo, onOverlap: func() {
		once.Do(func() {
			go func() {
				_, err := f.svc.Cancel(ctx, Actor{ID: f.patient, Role: auth.RolePatient}, a.ID)
				done <- err
			}()
			select {
			case err := <-done:
				t.Errorf("cancel completed while the reschedule held the lock (err=%v)", err)
				done <- err
			case <-time.After(50 * time.Millisecond):
			}
		})
	}}

	if _, err := f.svc.Reschedule(ctx, f.doctor, a.ID, RescheduleRequest{Date: "2026-03-12", Time: "14:00"}); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Cancel after reschedule: %v", err)
	}

	got, _ := f.repo.GetByID(ctx, a.ID)
	if got.Status != StatusCancelled {
		t.Errorf("the patient's cancel must win, got status %s", got.Status)
	}
	if got.Start.In(ist).Hour() != 14 {
		t.Errorf("the cancel must not revert the new start, got %s", got.Start)
	}
}

func TestService_SessionTransitionsTakePractitionerLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(f.patient, f.doctor, time.Date(2026, 3, 10, 11, 0, 0, 0, ist), StatusConfirmed)

	f.repo.lock.Lock()
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.StartSession(ctx, f.doctor, a.ID)
		done <- err
	}()
	select {
	case <-done:
		t.Fatal("StartSession ran without the practitioner lock")
	case <-time.After(50 * time.Millisecond):
	}
	f.repo.lock.Unlock()
	if err := <-done; err != nil {
		t.Fatalf("StartSession: %v", err)
	}
}

func TestService_SessionTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(f.patient, f.doctor, time.Date(2026, 3, 10, 11, 0, 0, 0, ist), StatusConfirmed)

	if _, err := f.svc.Complete(ctx, f.doctor, a.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition completing a confirmed appointment, got %v", err)
	}
	got, err := f.svc.StartSession(ctx, f.doctor, a.ID)
	if err != nil || got.Status != StatusInSession {
		t.Fatalf("StartSession: %+v %v", got, err)
	}
	if _, err := f.svc.Cancel(ctx, Actor{ID: f.doctor, Role: auth.RoleDoctor}, a.ID); err != nil {
		t.Errorf("an in-session appointment may be cancelled, got %v", err)
	}

	b := f.seed(f.patient, f.doctor, time.Date(2026, 3, 10, 13, 0, 0, 0, ist), StatusConfirmed)
	_, _ = f.svc.StartSession(ctx, f.doctor, b.ID)
	got, err = f.svc.Complete(ctx, f.doctor, b.ID)
	if err != nil || got.Status != StatusCompleted {
		t.Fatalf("Complete: %+v %v", got, err)
	}
	if _, err := f.svc.Cancel(ctx, Actor{ID: f.patient, Role: auth.RolePatient}, b.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected completed appointments to be final, got %v", err)
	}
}

func TestService_ListForPractitioner(t *testing.T) {
	f := newFixture(t)
	late := f.seed(f.patient, f.doctor, time.Date(2026, 3, 12, 15, 0, 0, 0, ist), StatusConfirmed)
	early := f.seed(f.other, f.doctor, time.Date(2026, 3, 12, 9, 0, 0, 0, ist), StatusConfirmed)
	f.seed(f.other, f.doctor, time.Date(2026, 3, 13, 9, 0, 0, 0, ist), StatusConfirmed)
	f.seed(f.other, f.doctorTwo, time.Date(2026, 3, 12, 9, 0, 0, 0, ist), StatusConfirmed)

	got, err := f.svc.ListForPractitioner(context.Background(), f.doctor, "", "2026-03-12")
	if err != nil {
		t.Fatalf("ListForPractitioner: %v", err)
	}
	if len(got) != 2 || got[0].ID != early.ID || got[1].ID != late.ID {
		t.Errorf("unexpected queue %+v", got)
	}

	got, _ = f.svc.ListForPractitioner(context.Background(), f.doctor, "CANCELLED", "")
	if len(got) != 0 {
		t.Errorf("expected no cancelled appointments, got %d", len(got))
	}
	if _, err := f.svc.ListForPractitioner(context.Background(), f.doctor, "", "March 12"); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestService_ListByPatientEmail(t *testing.T) {
	f := newFixture(t)
	f.seed(f.patient, f.doctor, time.Date(2026, 3, 1, 9, 0, 0, 0, ist), StatusCompleted)
	f.seed(f.patient, f.doctor, time.Date(2026, 3, 20, 9, 0, 0, 0, ist), StatusConfirmed)

	got, err := f.svc.ListByPatientEmail(context.Background(), " Meera@Example.com ")
	if err != nil {
		t.Fatalf("ListByPatientEmail: %v", err)
	}
	if len(got) != 2 || !got[0].Start.After(got[1].Start) {
		t.Errorf("expected 2 appointments newest first, got %+v", got)
	}
}

func TestService_Availability(t *testing.T) {
	f := newFixture(t)
	f.seed(f.patient, f.doctor, time.Date(2026, 3, 12, 9, 0, 0, 0, ist), StatusConfirmed)

	slots, err := f.svc.Availability(context.Background(), f.doctor, "2026-03-12", 60)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected free slots")
	}
	if first := slots[0].Start.In(ist); first.Hour() != 10 || first.Minute() != 0 {
		t.Errorf("expected first free slot at 10:00, got %s", first)
	}
	last := slots[len(slots)-1]
	if last.End.In(ist).Hour() != 18 || last.End.In(ist).Minute() != 0 {
		t.Errorf("expected last slot to end at closing, got %s", last.End.In(ist))
	}

	today, _ := f.svc.Availability(context.Background(), f.doctor, "2026-03-10", 30)
	for _, s := range today {
		if s.Start.Before(f.svc.now()) {
			t.Fatalf("slot %s is in the past", s.Start)
		}
	}
}

func TestService_NotificationFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("sendgrid down")
	if _, err := f.book(t, f.patient, f.doctor, "2026-03-12", "10:00", 1); err != nil {
		t.Errorf("expected booking to succeed, got %v", err)
	}
}
