package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Status is the closed set of appointment lifecycle states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusPrescribed Status = "prescribed"
	StatusDeclined   Status = "declined"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// validTransitions is the exhaustive (from, to) table. Anything not listed
// is rejected; a same-status request is an idempotent no-op handled before
// the table is consulted. no_show appointments cannot be re-assigned.
var validTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusAssigned:  true,
		StatusDeclined:  true,
		StatusCancelled: true,
	},
	StatusAssigned: {
		StatusConfirmed: true,
		StatusPending:   true,
		StatusDeclined:  true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusInProgress: true,
		StatusCancelled:  true,
		StatusNoShow:     true,
	},
	StatusInProgress: {
		StatusCompleted: true,
		StatusNoShow:    true,
	},
	StatusCompleted: {
		StatusPrescribed: true,
	},
	StatusPrescribed: {},
	StatusDeclined:   {},
	StatusCancelled:  {},
	StatusNoShow:     {},
}

func (s Status) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransition reports whether the table allows moving from s to target.
func (s Status) CanTransition(target Status) bool {
	return validTransitions[s][target]
}

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	return len(validTransitions[s]) == 0
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

var validPaymentStatuses = map[PaymentStatus]bool{
	PaymentPending:  true,
	PaymentPaid:     true,
	PaymentRefunded: true,
	PaymentFailed:   true,
}

// Valid appointment types.
var validTypes = map[string]bool{
	"consultation": true,
	"follow_up":    true,
	"checkup":      true,
	"emergency":    true,
}

// Appointment maps to the appointments table. Rows are never deleted;
// cancellation is a terminal status.
type Appointment struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	PatientID      uuid.UUID     `db:"patient_id" json:"patient_id"`
	ClinicID       uuid.UUID     `db:"clinic_id" json:"clinic_id"`
	DoctorID       *uuid.UUID    `db:"doctor_id" json:"doctor_id,omitempty"`
	PrescriptionID *uuid.UUID    `db:"prescription_id" json:"prescription_id,omitempty"`
	Date           time.Time     `db:"appointment_date" json:"appointment_date"`
	Time           string        `db:"appointment_time" json:"appointment_time"`
	Type           string        `db:"appointment_type" json:"appointment_type"`
	Status         Status        `db:"status" json:"status"`
	Notes          *string       `db:"notes" json:"notes,omitempty"`
	ClinicNotes    *string       `db:"clinic_notes" json:"clinic_notes,omitempty"`
	DoctorNotes    *string       `db:"doctor_notes" json:"doctor_notes,omitempty"`
	DeclineReason  *string       `db:"decline_reason" json:"decline_reason,omitempty"`
	PaymentStatus  PaymentStatus `db:"payment_status" json:"payment_status"`
	ClinicRating   *int          `db:"clinic_rating" json:"clinic_rating,omitempty"`
	DoctorRating   *int          `db:"doctor_rating" json:"doctor_rating,omitempty"`
	Feedback       *string       `db:"feedback" json:"feedback,omitempty"`
	AssignedBy     *uuid.UUID    `db:"assigned_by" json:"assigned_by,omitempty"`
	AssignedAt     *time.Time    `db:"assigned_at" json:"assigned_at,omitempty"`
	ConfirmedAt    *time.Time    `db:"confirmed_at" json:"confirmed_at,omitempty"`
	DeclinedAt     *time.Time    `db:"declined_at" json:"declined_at,omitempty"`
	StartedAt      *time.Time    `db:"started_at" json:"started_at,omitempty"`
	CompletedAt    *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	RatedAt        *time.Time    `db:"rated_at" json:"rated_at,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}
