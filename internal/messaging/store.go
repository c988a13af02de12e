package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ThreadStore is the durable record of messages and derived read state.
// It owns recipient-eligibility enforcement: a message only enters the
// store when its sender may address its receiver.
type ThreadStore struct {
	repo Repository
}

func NewThreadStore(repo Repository) *ThreadStore {
	return &ThreadStore{repo: repo}
}

// Append validates eligibility and persists the message. When the message
// links an appointment, both parties must belong to it; otherwise the two
// users must share at least one appointment.
func (s *ThreadStore) Append(ctx context.Context, msg Message) (*Message, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return nil, ErrEmptyContent
	}
	if msg.SenderID == uuid.Nil || msg.ReceiverID == uuid.Nil {
		return nil, fmt.Errorf("%w: sender and receiver are required", ErrIneligibleRecipient)
	}
	if msg.SenderID == msg.ReceiverID {
		return nil, fmt.Errorf("%w: cannot message yourself", ErrIneligibleRecipient)
	}

	if msg.AppointmentID != nil {
		clientID, practitionerID, err := s.repo.AppointmentParties(ctx, *msg.AppointmentID)
		if err != nil {
			return nil, fmt.Errorf("resolve linked appointment: %w", err)
		}
		pair := map[uuid.UUID]bool{clientID: true, practitionerID: true}
		if !pair[msg.SenderID] || !pair[msg.ReceiverID] {
			return nil, fmt.Errorf("%w: linked appointment does not involve both parties", ErrIneligibleRecipient)
		}
	} else {
		linked, err := s.repo.SharedAppointmentExists(ctx, msg.SenderID, msg.ReceiverID)
		if err != nil {
			return nil, fmt.Errorf("check eligibility: %w", err)
		}
		if !linked {
			return nil, ErrIneligibleRecipient
		}
	}

	stored, err := s.repo.Insert(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return stored, nil
}

// ListReceived returns the user's received messages, newest first.
func (s *ThreadStore) ListReceived(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	msgs, err := s.repo.ListReceived(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list received: %w", err)
	}
	return msgs, nil
}

// ListSent returns the user's sent messages, newest first.
func (s *ThreadStore) ListSent(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	msgs, err := s.repo.ListSent(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sent: %w", err)
	}
	return msgs, nil
}

// UnreadCount counts the user's unread, undeleted received messages.
func (s *ThreadStore) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

// MarkRead flips is_read exactly once, and only for the receiver. It
// reports whether this call performed the flip.
func (s *ThreadStore) MarkRead(ctx context.Context, messageID, readerID uuid.UUID) (bool, error) {
	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return false, err
	}
	if msg.ReceiverID != readerID {
		return false, ErrForbidden
	}
	if msg.IsRead {
		// Idempotent: already read is success, not an error.
		return false, nil
	}

	flipped, err := s.repo.SetRead(ctx, messageID)
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	return flipped, nil
}

// SoftDelete hides a message from the owner's views. Only the sender or
// the receiver may delete.
func (s *ThreadStore) SoftDelete(ctx context.Context, messageID, ownerID uuid.UUID) error {
	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != ownerID && msg.ReceiverID != ownerID {
		return ErrForbidden
	}
	if msg.IsDeleted {
		return nil
	}
	if err := s.repo.SetDeleted(ctx, messageID); err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	return nil
}

// EligibleRecipients returns the distinct clients the practitioner
// shares at least one appointment with, sorted by first name.
func (s *ThreadStore) EligibleRecipients(ctx context.Context, practitionerID uuid.UUID) ([]Recipient, error) {
	recipients, err := s.repo.ListEligibleRecipients(ctx, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("list eligible recipients: %w", err)
	}
	return recipients, nil
}

// RecordEvent appends a messaging event to the shared audit log.
func (s *ThreadStore) RecordEvent(ctx context.Context, eventType string, payload []byte) error {
	return s.repo.InsertEvent(ctx, eventType, payload)
}

// IsEligible reports whether sender may message receiver outside any
// appointment link.
func (s *ThreadStore) IsEligible(ctx context.Context, senderID, receiverID uuid.UUID) (bool, error) {
	linked, err := s.repo.SharedAppointmentExists(ctx, senderID, receiverID)
	if err != nil {
		return false, fmt.Errorf("check eligibility: %w", err)
	}
	return linked, nil
}
