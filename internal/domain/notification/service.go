// Package notification turns workflow transitions into persisted messages
// for the patient, clinic, and doctor. Creation is transactional with the
// transition that caused it; pushing rows out to external channels is the
// delivery worker's problem.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/igabay/care/internal/domain/actor"
)

var (
	ErrNotFound      = errors.New("notification not found")
	ErrNotAuthorized = errors.New("notification belongs to another recipient")
	ErrValidation    = errors.New("invalid notification input")
)

// Parties names everyone involved in an appointment at dispatch time.
// DoctorID is nil while the appointment is unassigned.
type Parties struct {
	PatientID uuid.UUID
	ClinicID  uuid.UUID
	DoctorID  *uuid.UUID
}

// Event is one workflow occurrence to fan out.
type Event struct {
	Category       Category
	Parties        Parties
	Actor          actor.Type
	AppointmentID  uuid.UUID
	PrescriptionID *uuid.UUID
	// Detail is interpolated into the message body where the template
	// has a slot for it (decline reason, cancellation reason).
	Detail string
}

type template struct {
	title    string
	message  string
	priority Priority
	ttl      time.Duration
}

// catalog fixes title, message, and priority per event category. A zero ttl
// means the notification never expires.
var catalog = map[Category]template{
	AppointmentBooked:     {"New appointment request", "A patient requested an appointment%s.", PriorityNormal, 0},
	AppointmentAssigned:   {"New appointment assigned", "You have been assigned a new appointment%s.", PriorityHigh, 0},
	AppointmentConfirmed:  {"Appointment confirmed", "Your appointment has been confirmed by the doctor%s.", PriorityNormal, 0},
	AppointmentDeclined:   {"Doctor declined assignment", "The assigned doctor declined the appointment%s.", PriorityHigh, 0},
	AppointmentCancelled:  {"Appointment cancelled", "The appointment has been cancelled%s.", PriorityHigh, 0},
	AppointmentCompleted:  {"Appointment completed", "Your appointment has been completed%s.", PriorityNormal, 0},
	AppointmentNoShow:     {"Patient did not attend", "The patient did not attend the appointment%s.", PriorityNormal, 0},
	RatingRequest:         {"Rate your visit", "Please rate your recent appointment%s.", PriorityLow, 30 * 24 * time.Hour},
	RatingReceived:        {"New rating received", "A patient rated their appointment%s.", PriorityLow, 0},
	PrescriptionAvailable: {"Prescription available", "A prescription has been issued for your appointment%s.", PriorityHigh, 0},
	PaymentConfirmed:      {"Payment confirmed", "Payment for your appointment has been confirmed%s.", PriorityNormal, 0},
}

type rcpt struct {
	id uuid.UUID
	at actor.Type
}

// recipients maps each category to the parties who should hear about it.
// Cancellation goes to everyone except the actor who cancelled.
func recipients(ev Event) []rcpt {
	p := ev.Parties

	var out []rcpt
	add := func(id uuid.UUID, at actor.Type) {
		if id != uuid.Nil {
			out = append(out, rcpt{id, at})
		}
	}
	addDoctor := func() {
		if p.DoctorID != nil {
			add(*p.DoctorID, actor.Doctor)
		}
	}

	switch ev.Category {
	case AppointmentBooked:
		add(p.ClinicID, actor.Clinic)
	case AppointmentAssigned:
		addDoctor()
	case AppointmentConfirmed, AppointmentCompleted, RatingRequest, PrescriptionAvailable, PaymentConfirmed:
		add(p.PatientID, actor.Patient)
	case AppointmentDeclined, AppointmentNoShow:
		add(p.ClinicID, actor.Clinic)
	case RatingReceived:
		add(p.ClinicID, actor.Clinic)
		addDoctor()
	case AppointmentCancelled:
		if ev.Actor != actor.Patient {
			add(p.PatientID, actor.Patient)
		}
		if ev.Actor != actor.Clinic {
			add(p.ClinicID, actor.Clinic)
		}
		if ev.Actor != actor.Doctor {
			addDoctor()
		}
	}
	return out
}

type Dispatcher struct {
	repo Repository
}

func NewDispatcher(repo Repository) *Dispatcher {
	return &Dispatcher{repo: repo}
}

// Dispatch fans ev out to its recipients, one notification each. It runs in
// the caller's transaction context: a persistence failure fails the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) ([]*Notification, error) {
	tpl, ok := catalog[ev.Category]
	if !ok {
		return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, ev.Category)
	}
	if ev.AppointmentID == uuid.Nil {
		return nil, fmt.Errorf("%w: appointment_id is required", ErrValidation)
	}

	detail := ""
	if ev.Detail != "" {
		detail = ": " + ev.Detail
	}

	var created []*Notification
	for _, rcpt := range recipients(ev) {
		n := &Notification{
			RecipientID:    rcpt.id,
			RecipientType:  rcpt.at,
			Category:       ev.Category,
			Title:          tpl.title,
			Message:        fmt.Sprintf(tpl.message, detail),
			Priority:       tpl.priority,
			AppointmentID:  &ev.AppointmentID,
			PrescriptionID: ev.PrescriptionID,
		}
		if tpl.ttl > 0 {
			exp := time.Now().UTC().Add(tpl.ttl)
			n.ExpiresAt = &exp
		}
		if err := d.repo.Upsert(ctx, n); err != nil {
			return nil, fmt.Errorf("dispatch %s: %w", ev.Category, err)
		}
		created = append(created, n)
	}
	return created, nil
}

// ListForRecipient returns the recipient's notifications, newest first.
func (d *Dispatcher) ListForRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	return d.repo.ListForRecipient(ctx, recipientID, unreadOnly, limit, offset)
}

func (d *Dispatcher) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error) {
	return d.repo.UnreadCount(ctx, recipientID)
}

// MarkRead is idempotent: the second call leaves read_at untouched.
func (d *Dispatcher) MarkRead(ctx context.Context, id, recipientID uuid.UUID) (*Notification, error) {
	n, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if n.RecipientID != recipientID {
		return nil, ErrNotAuthorized
	}
	if err := d.repo.MarkRead(ctx, id, time.Now().UTC()); err != nil {
		return nil, err
	}
	return d.repo.GetByID(ctx, id)
}

// Dismiss removes a notification. Only the recipient may dismiss.
func (d *Dispatcher) Dismiss(ctx context.Context, id, recipientID uuid.UUID) error {
	n, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if n.RecipientID != recipientID {
		return ErrNotAuthorized
	}
	return d.repo.Delete(ctx, id)
}

// PruneExpired deletes notifications past their expires_at.
func (d *Dispatcher) PruneExpired(ctx context.Context) (int64, error) {
	return d.repo.DeleteExpired(ctx, time.Now().UTC())
}
