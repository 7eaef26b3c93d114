package assignment

import (
	"time"

	"github.com/google/uuid"
)

// ResponseStatus tracks the doctor's answer to one routing attempt.
type ResponseStatus string

const (
	ResponsePending  ResponseStatus = "pending"
	ResponseAccepted ResponseStatus = "accepted"
	ResponseDeclined ResponseStatus = "declined"
)

// Assignment maps to the assignments table. One appointment accumulates a
// row per routing attempt; at most one of them may be pending.
type Assignment struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	AppointmentID uuid.UUID      `db:"appointment_id" json:"appointment_id"`
	ClinicID      uuid.UUID      `db:"clinic_id" json:"clinic_id"`
	DoctorID      uuid.UUID      `db:"doctor_id" json:"doctor_id"`
	AssignedBy    uuid.UUID      `db:"assigned_by" json:"assigned_by"`
	Response      ResponseStatus `db:"response_status" json:"response_status"`
	Notes         *string        `db:"notes" json:"notes,omitempty"`
	ResponseNotes *string        `db:"response_notes" json:"response_notes,omitempty"`
	AssignedAt    time.Time      `db:"assigned_at" json:"assigned_at"`
	RespondedAt   *time.Time     `db:"responded_at" json:"responded_at,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}
