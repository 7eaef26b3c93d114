package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/igabay/care/internal/domain/actor"
)

// Category is the closed set of workflow events a notification can describe.
type Category string

const (
	AppointmentBooked     Category = "appointment_booked"
	AppointmentAssigned   Category = "appointment_assigned"
	AppointmentConfirmed  Category = "appointment_confirmed"
	AppointmentDeclined   Category = "appointment_declined"
	AppointmentCancelled  Category = "appointment_cancelled"
	AppointmentCompleted  Category = "appointment_completed"
	AppointmentNoShow     Category = "appointment_no_show"
	RatingRequest         Category = "rating_request"
	RatingReceived        Category = "rating_received"
	PrescriptionAvailable Category = "prescription_available"
	PaymentConfirmed      Category = "payment_confirmed"
)

var validCategories = map[Category]bool{
	AppointmentBooked:     true,
	AppointmentAssigned:   true,
	AppointmentConfirmed:  true,
	AppointmentDeclined:   true,
	AppointmentCancelled:  true,
	AppointmentCompleted:  true,
	AppointmentNoShow:     true,
	RatingRequest:         true,
	RatingReceived:        true,
	PrescriptionAvailable: true,
	PaymentConfirmed:      true,
}

func (c Category) Valid() bool {
	return validCategories[c]
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Notification maps to the notifications table.
type Notification struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	RecipientID    uuid.UUID  `db:"recipient_id" json:"recipient_id"`
	RecipientType  actor.Type `db:"recipient_type" json:"recipient_type"`
	Category       Category   `db:"category" json:"category"`
	Title          string     `db:"title" json:"title"`
	Message        string     `db:"message" json:"message"`
	Priority       Priority   `db:"priority" json:"priority"`
	AppointmentID  *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	PrescriptionID *uuid.UUID `db:"prescription_id" json:"prescription_id,omitempty"`
	IsRead         bool       `db:"is_read" json:"is_read"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	DeliveredAt    *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	DeliveryChannel *string   `db:"delivery_channel" json:"delivery_channel,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
