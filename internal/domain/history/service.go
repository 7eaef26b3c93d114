// Package history is the append-only audit trail of appointment status
// transitions. It trusts callers to have validated the transition already;
// its only job is to never lose or reorder an entry.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/igabay/care/internal/domain/actor"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends one audit entry. oldStatus is nil for the creation entry.
func (s *Service) Record(ctx context.Context, appointmentID uuid.UUID, oldStatus *string, newStatus string, changedBy uuid.UUID, changedByType actor.Type, reason *string) (*Entry, error) {
	if appointmentID == uuid.Nil {
		return nil, fmt.Errorf("appointment_id is required")
	}
	e := &Entry{
		AppointmentID: appointmentID,
		OldStatus:     oldStatus,
		NewStatus:     newStatus,
		ChangedBy:     changedBy,
		ChangedByType: changedByType,
		Reason:        reason,
	}
	if err := s.repo.Append(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// ListForAppointment returns entries ordered oldest first.
func (s *Service) ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Entry, error) {
	return s.repo.ListForAppointment(ctx, appointmentID)
}

// Durations folds an appointment's history into per-state dwell times. The
// last entry's state is marked current and measured against now.
func (s *Service) Durations(ctx context.Context, appointmentID uuid.UUID, now time.Time) ([]StateDuration, error) {
	entries, err := s.repo.ListForAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	var out []StateDuration
	for i, e := range entries {
		d := StateDuration{Status: e.NewStatus, EnteredAt: e.CreatedAt}
		if i+1 < len(entries) {
			d.Duration = entries[i+1].CreatedAt.Sub(e.CreatedAt)
		} else {
			d.Duration = now.Sub(e.CreatedAt)
			d.Current = true
		}
		out = append(out, d)
	}
	return out, nil
}

// Replay returns the status the history implies the appointment is in now,
// or empty when no entries exist.
func Replay(entries []*Entry) string {
	if len(entries) == 0 {
		return ""
	}
	return entries[len(entries)-1].NewStatus
}
