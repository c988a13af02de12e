package messaging

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID            uuid.UUID
	SenderID      uuid.UUID
	ReceiverID    uuid.UUID
	Content       string
	AppointmentID *uuid.UUID
	CreatedAt     time.Time
	IsRead        bool
	IsDeleted     bool
}

// Recipient is a client a practitioner is eligible to message, with the
// display fields the composition UI needs.
type Recipient struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
}

// InboxItem is a received message with the sender's display name resolved.
type InboxItem struct {
	Message
	SenderName string
}

const EventMessageSent = "MESSAGE_SENT"
