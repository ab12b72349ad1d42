package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type emailCall struct {
	To, Subject, Body string
}

type mockEmailSender struct {
	mu    sync.Mutex
	calls []emailCall
	err   error
}

func (m *mockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, emailCall{to, subject, body})
	return m.err
}

func TestTemplateEngine_RenderEmergency(t *testing.T) {
	e := NewTemplateEngine()
	subject, body, err := e.Render(TemplateEmergencyAlert, map[string]string{
		"patient_name": "Asha",
		"symptoms":     "dizziness after Shirodhara",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if subject != "EMERGENCY: Asha needs assistance" {
		t.Errorf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "dizziness after Shirodhara") {
		t.Errorf("expected symptoms in body, got %q", body)
	}
	// Missing keys stay as placeholders.
	if !strings.Contains(body, "{{emergency_id}}") {
		t.Errorf("expected unfilled placeholder to remain, got %q", body)
	}
}

func TestTemplateEngine_RenderMissing(t *testing.T) {
	if _, _, err := NewTemplateEngine().Render("nope", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestNotificationManager_SendFromTemplate(t *testing.T) {
	sender := &mockEmailSender{}
	mgr := NewNotificationManager(sender, NewTemplateEngine())

	n, err := mgr.SendFromTemplate(context.Background(), TemplateAppointmentBooked, map[string]string{
		"patient_name": "Ravi", "date": "2026-11-02",
	}, "ravi@example.com")
	if err != nil {
		t.Fatalf("SendFromTemplate: %v", err)
	}
	if n.Status != StatusSent || n.SentAt == nil || n.Attempts != 1 {
		t.Errorf("unexpected notification state: %+v", n)
	}
	if len(sender.calls) != 1 || sender.calls[0].To != "ravi@example.com" {
		t.Fatalf("unexpected calls: %+v", sender.calls)
	}
	if sender.calls[0].Subject != "Your Ayursutra appointment on 2026-11-02" {
		t.Errorf("unexpected subject %q", sender.calls[0].Subject)
	}
}

func TestNotificationManager_FailedThenRetry(t *testing.T) {
	sender := &mockEmailSender{err: errors.New("smtp down")}
	mgr := NewNotificationManager(sender, NewTemplateEngine())
	ctx := context.Background()

	n, err := mgr.SendFromTemplate(ctx, TemplateEmergencyAlert, nil, "staff@clinic")
	if err == nil {
		t.Fatal("expected delivery error")
	}
	if n.Status != StatusFailed || n.Error != "smtp down" {
		t.Errorf("unexpected state: %+v", n)
	}
	if got := mgr.List(ctx, StatusFailed, 10); len(got) != 1 {
		t.Fatalf("expected 1 failed notification, got %d", len(got))
	}

	sender.err = nil
	if err := mgr.Retry(ctx, n.ID); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	got, _ := mgr.Get(ctx, n.ID)
	if got.Status != StatusSent || got.Attempts != 2 {
		t.Errorf("expected sent after 2 attempts, got %+v", got)
	}
	if err := mgr.Retry(ctx, n.ID); !errors.Is(err, ErrNotRetryable) {
		t.Errorf("expected ErrNotRetryable, got %v", err)
	}
	if err := mgr.Retry(ctx, "missing"); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("expected ErrNotificationNotFound, got %v", err)
	}

	stats := mgr.Stats(ctx)
	if stats[StatusSent] != 1 || stats[StatusFailed] != 0 {
		t.Errorf("unexpected stats: %v", stats)
	}
}

func TestNotificationManager_HistoryIsBounded(t *testing.T) {
	mgr := NewNotificationManager(&mockEmailSender{}, NewTemplateEngine())
	mgr.maxHistory = 3
	for i := 0; i < 5; i++ {
		_ = mgr.Send(context.Background(), &Notification{Recipient: "a@b", Subject: "s", Body: "b"})
	}
	if got := len(mgr.List(context.Background(), "", 0)); got != 3 {
		t.Errorf("expected 3 retained notifications, got %d", got)
	}
}

type fakeSendGrid struct {
	status int
	got    *mail.SGMailV3
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.got = m
	return &rest.Response{StatusCode: f.status, Body: "{}"}, nil
}

func TestSendGridSender(t *testing.T) {
	fake := &fakeSendGrid{status: http.StatusAccepted}
	s := &SendGridSender{client: fake, fromEmail: "no-reply@clinic", fromName: "Clinic", logger: zerolog.Nop()}

	if err := s.SendEmail(context.Background(), "staff@clinic", "Alert", "body"); err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	if fake.got == nil || fake.got.Subject != "Alert" || fake.got.From.Address != "no-reply@clinic" {
		t.Errorf("unexpected message: %+v", fake.got)
	}

	fake.status = http.StatusUnauthorized
	if err := s.SendEmail(context.Background(), "staff@clinic", "Alert", "body"); err == nil {
		t.Fatal("expected error on 401 from sendgrid")
	}
}

func TestNewSendGridSender_EmptyKey(t *testing.T) {
	if NewSendGridSender("", "x@y", zerolog.Nop()) != nil {
		t.Fatal("expected nil sender without an API key")
	}
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(zerolog.New(&buf))
	if err := s.SendEmail(context.Background(), "a@b", "subj", "body"); err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	if !strings.Contains(buf.String(), `"subject":"subj"`) {
		t.Errorf("expected subject in log, got %s", buf.String())
	}
}

func TestNotificationHandler_RetryAndStats(t *testing.T) {
	sender := &mockEmailSender{err: errors.New("down")}
	mgr := NewNotificationManager(sender, NewTemplateEngine())
	n, _ := mgr.SendFromTemplate(context.Background(), TemplateEmergencyAlert, nil, "staff@clinic")

	e := echo.New()
	NewNotificationHandler(mgr).RegisterRoutes(e.Group(""))

	sender.err = nil
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications/"+n.ID+"/retry", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications/"+n.ID+"/retry", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second retry, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications/stats", nil))
	var stats map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats[StatusSent] != 1 {
		t.Errorf("expected 1 sent, got %v", stats)
	}
}
