// Package appointment owns the booking lifecycle. Every status change goes
// through the transition table, runs inside one transaction under a row
// lock, and leaves an audit entry plus notifications behind, all or nothing.
package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/igabay/care/internal/domain/actor"
	"github.com/igabay/care/internal/domain/history"
	"github.com/igabay/care/internal/domain/notification"
	"github.com/igabay/care/internal/platform/db"
	"github.com/igabay/care/internal/platform/lock"
)

type Service struct {
	repo     Repository
	history  *history.Service
	notifier *notification.Dispatcher
	tx       db.Transactor
	locker   lock.SlotLocker
	now      func() time.Time
}

func NewService(repo Repository, hist *history.Service, notifier *notification.Dispatcher, tx db.Transactor, locker lock.SlotLocker) *Service {
	return &Service{
		repo:     repo,
		history:  hist,
		notifier: notifier,
		tx:       tx,
		locker:   locker,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create books a new pending appointment. When a doctor is requested up
// front, the slot is checked for conflicts under a per slot lock so two
// concurrent bookings cannot both pass the availability query.
func (s *Service) Create(ctx context.Context, a *Appointment, by actor.Ref) error {
	if a.PatientID == uuid.Nil {
		return validationErr("patient_id is required")
	}
	if a.ClinicID == uuid.Nil {
		return validationErr("clinic_id is required")
	}
	if a.Time == "" {
		return validationErr("appointment_time is required")
	}
	if a.Type == "" {
		a.Type = "consultation"
	}
	if !validTypes[a.Type] {
		return validationErr("unknown appointment type %q", a.Type)
	}
	if a.Date.IsZero() {
		return validationErr("appointment_date is required")
	}
	today := s.now().Truncate(24 * time.Hour)
	if a.Date.Before(today) {
		return validationErr("appointment_date must not be in the past")
	}

	a.Status = StatusPending
	if a.PaymentStatus == "" {
		a.PaymentStatus = PaymentPending
	}

	create := func(ctx context.Context) error {
		return s.tx.InTx(ctx, func(ctx context.Context) error {
			if a.DoctorID != nil {
				conflict, err := s.repo.HasSlotConflict(ctx, *a.DoctorID, a.Date, a.Time, uuid.Nil)
				if err != nil {
					return fmt.Errorf("%w: %v", ErrTransient, err)
				}
				if conflict {
					return ErrSlotUnavailable
				}
			}
			if err := s.repo.Create(ctx, a); err != nil {
				return fmt.Errorf("%w: %v", ErrTransient, err)
			}
			if _, err := s.history.Record(ctx, a.ID, nil, string(StatusPending), by.ID, by.Type, nil); err != nil {
				return fmt.Errorf("%w: %v", ErrTransient, err)
			}
			_, err := s.notifier.Dispatch(ctx, notification.Event{
				Category:      notification.AppointmentBooked,
				Parties:       s.parties(a),
				Actor:         by.Type,
				AppointmentID: a.ID,
			})
			if err != nil {
				return fmt.Errorf("%w: %v", ErrTransient, err)
			}
			return nil
		})
	}

	if a.DoctorID != nil {
		return s.locker.WithSlot(ctx, *a.DoctorID, a.Date.Format("2006-01-02"), a.Time, create)
	}
	return create(ctx)
}

// Transition moves an appointment to target, applying the per target side
// effects. Re-requesting the current status is an idempotent no-op. The
// whole call commits atomically or not at all.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, target Status, by actor.Ref, reason *string) (*Appointment, error) {
	if !target.Valid() {
		return nil, validationErr("unknown status %q", target)
	}

	var out *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}

		if a.Status == target {
			out = a
			return nil
		}
		if !a.Status.CanTransition(target) {
			return invalidTransition(a.Status, target)
		}

		old := string(a.Status)
		events, err := s.applyTarget(a, target, by, reason)
		if err != nil {
			return err
		}
		a.Status = target

		if err := s.repo.Update(ctx, a); err != nil {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		if _, err := s.history.Record(ctx, a.ID, &old, string(target), by.ID, by.Type, reason); err != nil {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		for _, ev := range events {
			if _, err := s.notifier.Dispatch(ctx, ev); err != nil {
				return fmt.Errorf("%w: %v", ErrTransient, err)
			}
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// applyTarget sets the timestamps and fields each target requires and
// returns the notifications the transition owes.
func (s *Service) applyTarget(a *Appointment, target Status, by actor.Ref, reason *string) ([]notification.Event, error) {
	now := s.now()
	ev := func(cat notification.Category, detail string) notification.Event {
		return notification.Event{
			Category:       cat,
			Parties:        s.parties(a),
			Actor:          by.Type,
			AppointmentID:  a.ID,
			PrescriptionID: a.PrescriptionID,
			Detail:         detail,
		}
	}
	detail := ""
	if reason != nil {
		detail = *reason
	}

	switch target {
	case StatusAssigned:
		if a.DoctorID == nil {
			return nil, validationErr("cannot assign without a doctor")
		}
		a.AssignedAt = &now
		if by.ID != uuid.Nil {
			assignedBy := by.ID
			a.AssignedBy = &assignedBy
		}
		return []notification.Event{ev(notification.AppointmentAssigned, "")}, nil

	case StatusConfirmed:
		a.ConfirmedAt = &now
		return []notification.Event{ev(notification.AppointmentConfirmed, "")}, nil

	case StatusPending:
		// Decline routed back for re-assignment. Notify before the doctor
		// is detached so the clinic message names the event correctly.
		a.DeclinedAt = &now
		a.DeclineReason = reason
		events := []notification.Event{ev(notification.AppointmentDeclined, detail)}
		a.DoctorID = nil
		a.AssignedBy = nil
		return events, nil

	case StatusDeclined:
		a.DeclinedAt = &now
		a.DeclineReason = reason
		return []notification.Event{ev(notification.AppointmentDeclined, detail)}, nil

	case StatusInProgress:
		a.StartedAt = &now
		return nil, nil

	case StatusCompleted:
		a.CompletedAt = &now
		return []notification.Event{
			ev(notification.AppointmentCompleted, ""),
			ev(notification.RatingRequest, ""),
		}, nil

	case StatusPrescribed:
		if a.PrescriptionID == nil {
			return nil, validationErr("cannot mark prescribed without a prescription")
		}
		return []notification.Event{ev(notification.PrescriptionAvailable, "")}, nil

	case StatusCancelled:
		note := "Cancelled"
		if detail != "" {
			note = "Cancelled: " + detail
		}
		a.Notes = &note
		return []notification.Event{ev(notification.AppointmentCancelled, detail)}, nil

	case StatusNoShow:
		return []notification.Event{ev(notification.AppointmentNoShow, "")}, nil
	}
	return nil, nil
}

// AssignDoctor attaches the doctor and drives the appointment to assigned
// in one transaction. The assignment coordinator owns the routing record;
// this owns the appointment side.
func (s *Service) AssignDoctor(ctx context.Context, id, doctorID uuid.UUID, by actor.Ref) (*Appointment, error) {
	if doctorID == uuid.Nil {
		return nil, validationErr("doctor_id is required")
	}

	var out *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		if !a.Status.CanTransition(StatusAssigned) {
			return invalidTransition(a.Status, StatusAssigned)
		}
		conflict, err := s.repo.HasSlotConflict(ctx, doctorID, a.Date, a.Time, a.ID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		if conflict {
			return ErrSlotUnavailable
		}
		a.DoctorID = &doctorID
		if err := s.repo.Update(ctx, a); err != nil {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		out, err = s.Transition(ctx, id, StatusAssigned, by, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel is a convenience wrapper over Transition.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, by actor.Ref, reason string) (*Appointment, error) {
	var r *string
	if reason != "" {
		r = &reason
	}
	return s.Transition(ctx, id, StatusCancelled, by, r)
}

// IssuePrescription links a prescription and advances the appointment to
// prescribed in one transaction.
func (s *Service) IssuePrescription(ctx context.Context, id, prescriptionID uuid.UUID, by actor.Ref) (*Appointment, error) {
	if prescriptionID == uuid.Nil {
		return nil, validationErr("prescription_id is required")
	}

	var out *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		if a.PrescriptionID != nil {
			if *a.PrescriptionID == prescriptionID {
				out = a
				return nil
			}
			return validationErr("prescription already linked")
		}
		if a.Status != StatusCompleted {
			return invalidTransition(a.Status, StatusPrescribed)
		}

		a.PrescriptionID = &prescriptionID
		if err := s.repo.Update(ctx, a); err != nil {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		out, err = s.Transition(ctx, id, StatusPrescribed, by, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rate records patient ratings. Allowed once the appointment is completed
// (or prescribed after it) and only once; the repeat call is a no-op.
func (s *Service) Rate(ctx context.Context, id uuid.UUID, clinicRating, doctorRating *int, feedback *string, by actor.Ref) (*Appointment, error) {
	for _, r := range []*int{clinicRating, doctorRating} {
		if r != nil && (*r < 1 || *r > 5) {
			return nil, validationErr("rating must be between 1 and 5")
		}
	}
	if clinicRating == nil && doctorRating == nil {
		return nil, validationErr("at least one rating is required")
	}

	var out *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		if a.RatedAt != nil {
			out = a
			return nil
		}
		if a.Status != StatusCompleted && a.Status != StatusPrescribed {
			return validationErr("rating allowed only after completion, status is %s", a.Status)
		}

		now := s.now()
		a.ClinicRating = clinicRating
		a.DoctorRating = doctorRating
		a.Feedback = feedback
		a.RatedAt = &now

		if err := s.repo.Update(ctx, a); err != nil {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		_, err = s.notifier.Dispatch(ctx, notification.Event{
			Category:      notification.RatingReceived,
			Parties:       s.parties(a),
			Actor:         by.Type,
			AppointmentID: a.ID,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetPaymentStatus records the payment subsystem's verdict. It is not a
// lifecycle transition and leaves the audit trail untouched.
func (s *Service) SetPaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus, by actor.Ref) (*Appointment, error) {
	if !validPaymentStatuses[status] {
		return nil, validationErr("unknown payment status %q", status)
	}

	var out *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		if a.PaymentStatus == status {
			out = a
			return nil
		}
		a.PaymentStatus = status
		if err := s.repo.Update(ctx, a); err != nil {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		if status == PaymentPaid {
			_, err = s.notifier.Dispatch(ctx, notification.Event{
				Category:      notification.PaymentConfirmed,
				Parties:       s.parties(a),
				Actor:         by.Type,
				AppointmentID: a.ID,
			})
			if err != nil {
				return fmt.Errorf("%w: %v", ErrTransient, err)
			}
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get retries once on transient read failures; reads have no side effects.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		a, err = s.repo.GetByID(ctx, id)
	}
	return a, err
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByClinic(ctx context.Context, clinicID uuid.UUID, status Status, limit, offset int) ([]*Appointment, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, validationErr("unknown status %q", status)
	}
	return s.repo.ListByClinic(ctx, clinicID, status, limit, offset)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}

// History exposes the appointment's audit trail.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]*history.Entry, error) {
	return s.history.ListForAppointment(ctx, id)
}

func (s *Service) parties(a *Appointment) notification.Parties {
	return notification.Parties{
		PatientID: a.PatientID,
		ClinicID:  a.ClinicID,
		DoctorID:  a.DoctorID,
	}
}
