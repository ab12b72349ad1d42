// Package notification sends templated email to patients and clinic staff
// and keeps a short in-memory history so failed sends can be retried.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotRetryable         = errors.New("only failed notifications can be retried")
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Notification represents a single outbound email.
type Notification struct {
	ID           string            `json:"id"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Status       string            `json:"status"`
	Attempts     int               `json:"attempts"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Template defines a reusable notification template.
type Template struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

const (
	TemplateEmergencyAlert         = "emergency-alert"
	TemplateAppointmentBooked      = "appointment-booked"
	TemplateAppointmentCancelled   = "appointment-cancelled"
	TemplateAppointmentRescheduled = "appointment-rescheduled"
)

// TemplateEngine renders {{key}} placeholders.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the portal templates registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	for _, t := range []Template{
		{
			ID:      TemplateEmergencyAlert,
			Subject: "EMERGENCY: {{patient_name}} needs assistance",
			Body:    "{{patient_name}} reported an emergency at {{submitted_at}}.\n\nSymptoms: {{symptoms}}\n\nReference: {{emergency_id}}",
		},
		{
			ID:      TemplateAppointmentBooked,
			Subject: "Your Ayursutra appointment on {{date}}",
			Body:    "Namaste {{patient_name}}, your appointment at {{center}} with {{practitioner}} is confirmed for {{date}} at {{time}}. Treatments: {{treatments}}. Total: Rs. {{total}}.",
		},
		{
			ID:      TemplateAppointmentCancelled,
			Subject: "Appointment on {{date}} cancelled",
			Body:    "Namaste {{patient_name}}, your appointment at {{center}} on {{date}} at {{time}} has been cancelled.",
		},
		{
			ID:      TemplateAppointmentRescheduled,
			Subject: "Appointment moved to {{date}}",
			Body:    "Namaste {{patient_name}}, {{practitioner}} has moved your appointment to {{date}} at {{time}}.",
		},
	} {
		t := t
		e.templates[t.ID] = &t
	}
	return e
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render performs {{key}} replacement. Placeholders without data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// NotificationManager sends notifications and remembers the most recent ones.
type NotificationManager struct {
	email         EmailSender
	templates     *TemplateEngine
	maxHistory    int
	mu            sync.RWMutex
	notifications map[string]*Notification
	order         []string
}

func NewNotificationManager(email EmailSender, tpl *TemplateEngine) *NotificationManager {
	return &NotificationManager{
		email:         email,
		templates:     tpl,
		maxHistory:    1000,
		notifications: make(map[string]*Notification),
	}
}

// Send delivers n and records the outcome. The delivery error is returned.
func (m *NotificationManager) Send(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()
	n.Status = StatusPending

	err := m.deliver(ctx, n)

	m.mu.Lock()
	m.notifications[n.ID] = n
	m.order = append(m.order, n.ID)
	if len(m.order) > m.maxHistory {
		delete(m.notifications, m.order[0])
		m.order = m.order[1:]
	}
	m.mu.Unlock()

	return err
}

func (m *NotificationManager) deliver(ctx context.Context, n *Notification) error {
	n.Attempts++
	if err := m.email.SendEmail(ctx, n.Recipient, n.Subject, n.Body); err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		return err
	}
	n.Status = StatusSent
	n.Error = ""
	sentAt := time.Now().UTC()
	n.SentAt = &sentAt
	return nil
}

// SendFromTemplate renders a template and sends the resulting notification.
func (m *NotificationManager) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error) {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	n := &Notification{
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
	}
	return n, m.Send(ctx, n)
}

func (m *NotificationManager) Get(_ context.Context, id string) (*Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	cp := *n
	return &cp, nil
}

// List returns notifications newest first, optionally filtered by status.
func (m *NotificationManager) List(_ context.Context, status string, limit int) []*Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Notification
	for _, n := range m.notifications {
		if status != "" && n.Status != status {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Retry re-sends a failed notification.
func (m *NotificationManager) Retry(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notifications[id]
	if !ok {
		return ErrNotificationNotFound
	}
	if n.Status != StatusFailed {
		return fmt.Errorf("notification %s is %s: %w", id, n.Status, ErrNotRetryable)
	}
	return m.deliver(ctx, n)
}

// Stats counts notifications by status.
func (m *NotificationManager) Stats(_ context.Context) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := map[string]int{StatusSent: 0, StatusFailed: 0}
	for _, n := range m.notifications {
		stats[n.Status]++
	}
	return stats
}
