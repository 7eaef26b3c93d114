// Package assignment routes appointments from clinics to doctors and keeps
// the record of who was asked and what they decided, independent of the
// appointment's own status so the trail survives re-assignment cycles.
package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/igabay/care/internal/domain/actor"
	"github.com/igabay/care/internal/domain/appointment"
	"github.com/igabay/care/internal/platform/db"
)

type Coordinator struct {
	repo  Repository
	appts *appointment.Service
	tx    db.Transactor
	now   func() time.Time
}

func NewCoordinator(repo Repository, appts *appointment.Service, tx db.Transactor) *Coordinator {
	return &Coordinator{
		repo:  repo,
		appts: appts,
		tx:    tx,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Assign routes the appointment to a doctor. The routing record and the
// appointment's move to assigned commit together.
func (c *Coordinator) Assign(ctx context.Context, appointmentID, clinicID, doctorID uuid.UUID, by actor.Ref, notes *string) (*Assignment, error) {
	if appointmentID == uuid.Nil || clinicID == uuid.Nil || doctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: appointment_id, clinic_id and doctor_id are required", ErrValidation)
	}

	var out *Assignment
	err := c.tx.InTx(ctx, func(ctx context.Context) error {
		open, err := c.repo.HasPendingForAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if open {
			return ErrDuplicatePendingAssignment
		}

		asg := &Assignment{
			AppointmentID: appointmentID,
			ClinicID:      clinicID,
			DoctorID:      doctorID,
			AssignedBy:    by.ID,
			Response:      ResponsePending,
			Notes:         notes,
			AssignedAt:    c.now(),
		}
		if err := c.repo.Create(ctx, asg); err != nil {
			return err
		}
		if _, err := c.appts.AssignDoctor(ctx, appointmentID, doctorID, by); err != nil {
			return err
		}
		out = asg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Respond records the doctor's accept or decline. Accepting confirms the
// appointment; declining releases it back to pending for re-assignment and
// records the reason on the appointment.
func (c *Coordinator) Respond(ctx context.Context, assignmentID, doctorID uuid.UUID, accept bool, responseNotes *string) (*Assignment, error) {
	var out *Assignment
	err := c.tx.InTx(ctx, func(ctx context.Context) error {
		asg, err := c.repo.GetForUpdate(ctx, assignmentID)
		if err != nil {
			return err
		}
		if asg.DoctorID != doctorID {
			return ErrNotAuthorized
		}
		if asg.Response != ResponsePending {
			return ErrAlreadyResponded
		}

		now := c.now()
		asg.RespondedAt = &now
		asg.ResponseNotes = responseNotes
		by := actor.Ref{ID: doctorID, Type: actor.Doctor}

		if accept {
			asg.Response = ResponseAccepted
			if err := c.repo.Update(ctx, asg); err != nil {
				return err
			}
			_, err = c.appts.Transition(ctx, asg.AppointmentID, appointment.StatusConfirmed, by, nil)
		} else {
			asg.Response = ResponseDeclined
			if err := c.repo.Update(ctx, asg); err != nil {
				return err
			}
			_, err = c.appts.Transition(ctx, asg.AppointmentID, appointment.StatusPending, by, responseNotes)
		}
		if err != nil {
			return err
		}
		out = asg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GiveUp closes the appointment as declined when the clinic stops trying to
// re-route after a decline.
func (c *Coordinator) GiveUp(ctx context.Context, appointmentID uuid.UUID, by actor.Ref, reason *string) error {
	return c.tx.InTx(ctx, func(ctx context.Context) error {
		open, err := c.repo.HasPendingForAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if open {
			return ErrDuplicatePendingAssignment
		}
		_, err = c.appts.Transition(ctx, appointmentID, appointment.StatusDeclined, by, reason)
		return err
	})
}

func (c *Coordinator) Get(ctx context.Context, id uuid.UUID) (*Assignment, error) {
	return c.repo.GetByID(ctx, id)
}

// ListByAppointment returns every routing attempt, oldest first.
func (c *Coordinator) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Assignment, error) {
	return c.repo.ListByAppointment(ctx, appointmentID)
}

func (c *Coordinator) ListByDoctor(ctx context.Context, doctorID uuid.UUID, pendingOnly bool, limit, offset int) ([]*Assignment, int, error) {
	return c.repo.ListByDoctor(ctx, doctorID, pendingOnly, limit, offset)
}
