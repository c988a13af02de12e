package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrAppointmentNotFound = errors.New("appointment not found")

// CreateParams carries the fields of a new pending appointment.
type CreateParams struct {
	ClientID        uuid.UUID
	PractitionerID  uuid.UUID
	ServiceID       uuid.UUID
	StartAt         time.Time
	DurationMinutes int
	Notes           string
}

// Repository contains all DB interactions needed by the booking and
// portal layers.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// CreatePending inserts a new appointment in status pending.
	CreatePending(ctx context.Context, p CreateParams) (*Appointment, error)

	// UpdateStatus performs a compare-and-swap transition; it returns
	// ErrAppointmentNotFound when no row matches (id, from).
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// Portal projections
	ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]Detail, error)
	ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]Detail, error)
	ListByPractitionerRange(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]Detail, error)

	// ListShared returns the appointments linking a client and a
	// practitioner, newest first. Used for message thread composition.
	ListShared(ctx context.Context, clientID, practitionerID uuid.UUID) ([]Appointment, error)

	// Audit trail
	InsertEvent(ctx context.Context, ev EventLog) error
}
