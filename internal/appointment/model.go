package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

type Appointment struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	PractitionerID  uuid.UUID
	ServiceID       uuid.UUID
	StartAt         time.Time
	DurationMinutes int
	Status          Status
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EndAt derives the exclusive end of the appointment's time range.
func (a *Appointment) EndAt() time.Time {
	return a.StartAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Detail is an appointment joined with the display names of both parties.
type Detail struct {
	Appointment
	ClientName       string
	PractitionerName string
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
