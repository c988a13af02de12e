package availability

import (
	"time"

	"github.com/google/uuid"
)

type SlotState string

const (
	SlotOpen   SlotState = "open"
	SlotHeld   SlotState = "held"
	SlotBooked SlotState = "booked"
)

// Slot is a contiguous time interval for one practitioner, exclusively in
// one of the three states. Slots for a practitioner never overlap.
type Slot struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	StartAt        time.Time
	EndAt          time.Time
	State          SlotState
	HoldToken      *uuid.UUID
	HeldUntil      *time.Time
	AppointmentID  *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Live reports whether the slot blocks the range at the given instant.
// A held slot whose lease expired no longer blocks anything.
func (s *Slot) Live(now time.Time) bool {
	switch s.State {
	case SlotBooked:
		return true
	case SlotHeld:
		return s.HeldUntil != nil && s.HeldUntil.After(now)
	default:
		return false
	}
}

// Hold is a provisional, lease-bounded claim on a slot. It must be either
// committed or released; the hold reaper releases it once HeldUntil passes.
type Hold struct {
	SlotID         uuid.UUID
	PractitionerID uuid.UUID
	StartAt        time.Time
	EndAt          time.Time
	Token          uuid.UUID
	HeldUntil      time.Time
}
