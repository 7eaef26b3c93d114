// Package actor defines the party types that drive the booking workflow.
// Every mutating call carries an (actor id, actor type) pair supplied by the
// identity provider; the workflow trusts the pairing and does not itself
// authenticate.
package actor

import "github.com/google/uuid"

// Type identifies which kind of party performed an action.
type Type string

const (
	Patient Type = "patient"
	Clinic  Type = "clinic"
	Doctor  Type = "doctor"
	System  Type = "system"
)

var validTypes = map[Type]bool{
	Patient: true,
	Clinic:  true,
	Doctor:  true,
	System:  true,
}

// Valid reports whether t is one of the known actor types.
func (t Type) Valid() bool {
	return validTypes[t]
}

func (t Type) String() string {
	return string(t)
}

// Ref identifies one concrete actor.
type Ref struct {
	ID   uuid.UUID `json:"id"`
	Type Type      `json:"type"`
}
