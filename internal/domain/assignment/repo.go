package assignment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Assignment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Assignment, error)
	// GetForUpdate takes a row lock; callers must be inside a transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Assignment, error)
	Update(ctx context.Context, a *Assignment) error
	HasPendingForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error)
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Assignment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, pendingOnly bool, limit, offset int) ([]*Assignment, int, error)
}
