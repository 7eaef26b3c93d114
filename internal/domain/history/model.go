package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/igabay/care/internal/domain/actor"
)

// Entry maps to the status_history table. Entries are append-only; nothing
// in the system updates or deletes one after insert.
type Entry struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	AppointmentID uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	OldStatus     *string    `db:"old_status" json:"old_status,omitempty"`
	NewStatus     string     `db:"new_status" json:"new_status"`
	ChangedBy     uuid.UUID  `db:"changed_by" json:"changed_by"`
	ChangedByType actor.Type `db:"changed_by_type" json:"changed_by_type"`
	Reason        *string    `db:"reason" json:"reason,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// StateDuration reports how long an appointment sat in one status.
type StateDuration struct {
	Status   string        `json:"status"`
	EnteredAt time.Time    `json:"entered_at"`
	Duration time.Duration `json:"duration"`
	Current  bool          `json:"current"`
}
