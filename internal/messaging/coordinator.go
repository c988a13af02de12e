package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carebridge/scheduling-core/internal/appointment"
	"github.com/carebridge/scheduling-core/internal/observability/metrics"
	"github.com/carebridge/scheduling-core/internal/profile"
)

// SendRequest carries a new message from the composition UI.
type SendRequest struct {
	SenderID      uuid.UUID
	ReceiverID    uuid.UUID
	Content       string
	AppointmentID *uuid.UUID
}

// Coordinator orchestrates send/fetch/mark-read across the thread store,
// profiles and appointment history.
type Coordinator struct {
	store        *ThreadStore
	profiles     profile.Repository
	appointments appointment.Repository
	metrics      *metrics.MessagingMetrics
}

func NewCoordinator(store *ThreadStore, profiles profile.Repository, appointments appointment.Repository, m *metrics.MessagingMetrics) *Coordinator {
	return &Coordinator{
		store:        store,
		profiles:     profiles,
		appointments: appointments,
		metrics:      m,
	}
}

// SendMessage validates and persists a message. On success both the
// sender's sent list and the receiver's unread count reflect the message
// on their next fetch; the emitted event lets push layers refresh views
// without a full reload.
func (c *Coordinator) SendMessage(ctx context.Context, req SendRequest) (*Message, error) {
	msg, err := c.store.Append(ctx, Message{
		SenderID:      req.SenderID,
		ReceiverID:    req.ReceiverID,
		Content:       req.Content,
		AppointmentID: req.AppointmentID,
	})
	if err != nil {
		switch {
		case isEligibilityError(err):
			c.metrics.ObserveSend("ineligible")
		default:
			c.metrics.ObserveSend("error")
		}
		return nil, err
	}

	c.logSentEvent(ctx, msg)
	c.metrics.ObserveSend("success")

	return msg, nil
}

// Inbox returns the user's received messages with sender names resolved.
func (c *Coordinator) Inbox(ctx context.Context, userID uuid.UUID) ([]InboxItem, error) {
	msgs, err := c.store.ListReceived(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	seen := map[uuid.UUID]struct{}{}
	var senderIDs []uuid.UUID
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	profiles, err := c.profiles.ListByIDs(ctx, senderIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve sender names: %w", err)
	}
	names := make(map[uuid.UUID]string, len(profiles))
	for _, p := range profiles {
		names[p.ID] = p.FirstName + " " + p.LastName
	}

	items := make([]InboxItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, InboxItem{Message: m, SenderName: names[m.SenderID]})
	}
	return items, nil
}

// Sent returns the user's sent messages, newest first.
func (c *Coordinator) Sent(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	return c.store.ListSent(ctx, userID)
}

// UnreadCount returns the user's unread message count.
func (c *Coordinator) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return c.store.UnreadCount(ctx, userID)
}

// MarkRead marks a message read on behalf of its receiver.
func (c *Coordinator) MarkRead(ctx context.Context, messageID, readerID uuid.UUID) error {
	flipped, err := c.store.MarkRead(ctx, messageID, readerID)
	if err != nil {
		return err
	}
	if flipped {
		c.metrics.ObserveRead()
	}
	return nil
}

// DeleteMessage soft-deletes a message for its sender or receiver.
func (c *Coordinator) DeleteMessage(ctx context.Context, messageID, ownerID uuid.UUID) error {
	return c.store.SoftDelete(ctx, messageID, ownerID)
}

// FetchRecipients returns the clients a practitioner may message, sorted
// by first name and deduplicated by client id.
func (c *Coordinator) FetchRecipients(ctx context.Context, practitionerID uuid.UUID) ([]Recipient, error) {
	recipients, err := c.store.EligibleRecipients(ctx, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("fetch recipients: %w", err)
	}
	return recipients, nil
}

// FetchAppointmentsForThread returns the appointments shared by a client
// and a practitioner, for linking a message to one of them.
func (c *Coordinator) FetchAppointmentsForThread(ctx context.Context, clientID, practitionerID uuid.UUID) ([]appointment.Appointment, error) {
	appts, err := c.appointments.ListShared(ctx, clientID, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("fetch thread appointments: %w", err)
	}
	return appts, nil
}

func (c *Coordinator) logSentEvent(ctx context.Context, msg *Message) {
	payload, err := json.Marshal(map[string]any{
		"message_id":  msg.ID.String(),
		"sender_id":   msg.SenderID.String(),
		"receiver_id": msg.ReceiverID.String(),
	})
	if err != nil {
		payload = nil
	}
	if err := c.store.RecordEvent(ctx, EventMessageSent, payload); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("message_id", msg.ID.String()).
			Msg("failed to log message event")
	}
}

func isEligibilityError(err error) bool {
	return errors.Is(err, ErrIneligibleRecipient) || errors.Is(err, ErrEmptyContent)
}
