package messaging

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrMessageNotFound     = errors.New("message not found")
	ErrIneligibleRecipient = errors.New("recipient is not eligible")
	ErrForbidden           = errors.New("not permitted")
	ErrEmptyContent        = errors.New("message content is empty")
)

// Repository contains the message-table interactions behind ThreadStore.
type Repository interface {
	Insert(ctx context.Context, msg Message) (*Message, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)

	// ListReceived/ListSent return messages newest first; ties on
	// created_at break toward the higher id. Soft-deleted messages are
	// excluded.
	ListReceived(ctx context.Context, userID uuid.UUID) ([]Message, error)
	ListSent(ctx context.Context, userID uuid.UUID) ([]Message, error)

	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)

	// SetRead flips is_read once; returns false when the flag was
	// already set.
	SetRead(ctx context.Context, messageID uuid.UUID) (bool, error)

	// SetDeleted soft-deletes a message.
	SetDeleted(ctx context.Context, messageID uuid.UUID) error

	// SharedAppointmentExists reports whether the two users are linked
	// by at least one appointment, in either role orientation.
	SharedAppointmentExists(ctx context.Context, a, b uuid.UUID) (bool, error)

	// AppointmentParties resolves the client and practitioner of an
	// appointment for thread-link validation.
	AppointmentParties(ctx context.Context, appointmentID uuid.UUID) (clientID, practitionerID uuid.UUID, err error)

	// ListEligibleRecipients returns the distinct clients with at least
	// one appointment with the practitioner, sorted by first name.
	ListEligibleRecipients(ctx context.Context, practitionerID uuid.UUID) ([]Recipient, error)

	// InsertEvent appends to the shared audit log.
	InsertEvent(ctx context.Context, eventType string, payload []byte) error
}
