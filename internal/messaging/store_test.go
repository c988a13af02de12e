package messaging

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/scheduling-core/internal/appointment"
)

// fakeMessageRepo is an in-memory Repository.
type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*Message
	seq      int

	// appointments drives eligibility: each entry links a client and a
	// practitioner the way a real appointment row would.
	appointments map[uuid.UUID]apptLink
	recipients   map[uuid.UUID]Recipient

	events     []string
	failInsert bool
}

type apptLink struct {
	clientID       uuid.UUID
	practitionerID uuid.UUID
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		messages:     map[uuid.UUID]*Message{},
		appointments: map[uuid.UUID]apptLink{},
		recipients:   map[uuid.UUID]Recipient{},
	}
}

func (f *fakeMessageRepo) link(clientID, practitionerID uuid.UUID) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.appointments[id] = apptLink{clientID: clientID, practitionerID: practitionerID}
	return id
}

func (f *fakeMessageRepo) Insert(_ context.Context, msg Message) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert {
		return nil, errors.New("simulated insert failure")
	}
	f.seq++
	m := msg
	m.ID = uuid.New()
	m.CreatedAt = time.Unix(int64(f.seq), 0)
	m.IsRead = false
	m.IsDeleted = false
	f.messages[m.ID] = &m
	c := m
	return &c, nil
}

func (f *fakeMessageRepo) GetByID(_ context.Context, id uuid.UUID) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	c := *m
	return &c, nil
}

func (f *fakeMessageRepo) list(filter func(*Message) bool) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, m := range f.messages {
		if !m.IsDeleted && filter(m) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out
}

func (f *fakeMessageRepo) ListReceived(_ context.Context, userID uuid.UUID) ([]Message, error) {
	return f.list(func(m *Message) bool { return m.ReceiverID == userID }), nil
}

func (f *fakeMessageRepo) ListSent(_ context.Context, userID uuid.UUID) ([]Message, error) {
	return f.list(func(m *Message) bool { return m.SenderID == userID }), nil
}

func (f *fakeMessageRepo) UnreadCount(_ context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.messages {
		if m.ReceiverID == userID && !m.IsRead && !m.IsDeleted {
			n++
		}
	}
	return n, nil
}

func (f *fakeMessageRepo) SetRead(_ context.Context, messageID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageID]
	if !ok || m.IsRead {
		return false, nil
	}
	m.IsRead = true
	return true, nil
}

func (f *fakeMessageRepo) SetDeleted(_ context.Context, messageID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageID]
	if !ok {
		return ErrMessageNotFound
	}
	m.IsDeleted = true
	return nil
}

func (f *fakeMessageRepo) SharedAppointmentExists(_ context.Context, a, b uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.appointments {
		if (l.clientID == a && l.practitionerID == b) || (l.clientID == b && l.practitionerID == a) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMessageRepo) AppointmentParties(_ context.Context, appointmentID uuid.UUID) (uuid.UUID, uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.appointments[appointmentID]
	if !ok {
		return uuid.Nil, uuid.Nil, appointment.ErrAppointmentNotFound
	}
	return l.clientID, l.practitionerID, nil
}

func (f *fakeMessageRepo) ListEligibleRecipients(_ context.Context, practitionerID uuid.UUID) ([]Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var out []Recipient
	for _, l := range f.appointments {
		if l.practitionerID != practitionerID || seen[l.clientID] {
			continue
		}
		seen[l.clientID] = true
		if r, ok := f.recipients[l.clientID]; ok {
			out = append(out, r)
		} else {
			out = append(out, Recipient{ID: l.clientID})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstName < out[j].FirstName })
	return out, nil
}

func (f *fakeMessageRepo) InsertEvent(_ context.Context, eventType string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return nil
}

func TestAppendRequiresSharedAppointment(t *testing.T) {
	ctx := context.Background()
	repo := newFakeMessageRepo()
	store := NewThreadStore(repo)

	pract := uuid.New()
	clientA := uuid.New()
	clientB := uuid.New()
	stranger := uuid.New()
	repo.link(clientA, pract)
	repo.link(clientB, pract)

	// Practitioner can message both linked clients.
	for _, to := range []uuid.UUID{clientA, clientB} {
		_, err := store.Append(ctx, Message{SenderID: pract, ReceiverID: to, Content: "reminder"})
		require.NoError(t, err)
	}

	// Client can message the practitioner back: the link is symmetric.
	_, err := store.Append(ctx, Message{SenderID: clientA, ReceiverID: pract, Content: "question"})
	require.NoError(t, err)

	// No appointment linking the pair means no message.
	_, err = store.Append(ctx, Message{SenderID: pract, ReceiverID: stranger, Content: "hi"})
	require.ErrorIs(t, err, ErrIneligibleRecipient)
	_, err = store.Append(ctx, Message{SenderID: stranger, ReceiverID: clientA, Content: "hi"})
	require.ErrorIs(t, err, ErrIneligibleRecipient)
}

func TestAppendRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	repo := newFakeMessageRepo()
	store := NewThreadStore(repo)
	a, b := uuid.New(), uuid.New()
	repo.link(a, b)

	_, err := store.Append(ctx, Message{SenderID: a, ReceiverID: b, Content: "   \n\t"})
	require.ErrorIs(t, err, ErrEmptyContent)

	_, err = store.Append(ctx, Message{SenderID: a, ReceiverID: a, Content: "note to self"})
	require.ErrorIs(t, err, ErrIneligibleRecipient)

	_, err = store.Append(ctx, Message{SenderID: a, Content: "no receiver"})
	require.ErrorIs(t, err, ErrIneligibleRecipient)
}

func TestAppendValidatesLinkedAppointment(t *testing.T) {
	ctx := context.Background()
	repo := newFakeMessageRepo()
	store := NewThreadStore(repo)

	pract := uuid.New()
	clientA := uuid.New()
	clientB := uuid.New()
	apptA := repo.link(clientA, pract)
	repo.link(clientB, pract)

	msg, err := store.Append(ctx, Message{SenderID: pract, ReceiverID: clientA, Content: "about your visit", AppointmentID: &apptA})
	require.NoError(t, err)
	require.NotNil(t, msg.AppointmentID)
	require.Equal(t, apptA, *msg.AppointmentID)

	// clientB is eligible in general, but not a party to apptA.
	_, err = store.Append(ctx, Message{SenderID: pract, ReceiverID: clientB, Content: "wrong thread", AppointmentID: &apptA})
	require.ErrorIs(t, err, ErrIneligibleRecipient)

	missing := uuid.New()
	_, err = store.Append(ctx, Message{SenderID: pract, ReceiverID: clientA, Content: "ghost", AppointmentID: &missing})
	require.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	ctx := context.Background()
	repo := newFakeMessageRepo()
	store := NewThreadStore(repo)

	pract := uuid.New()
	client := uuid.New()
	repo.link(client, pract)

	var ids []uuid.UUID
	for _, body := range []string{"first", "second", "third"} {
		m, err := store.Append(ctx, Message{SenderID: pract, ReceiverID: client, Content: body})
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	n, err := store.UnreadCount(ctx, client)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	// Each read drops the count by exactly one.
	flipped, err := store.MarkRead(ctx, ids[0], client)
	require.NoError(t, err)
	require.True(t, flipped)

	n, err = store.UnreadCount(ctx, client)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// Re-reading the same message is a no-op, not an error.
	flipped, err = store.MarkRead(ctx, ids[0], client)
	require.NoError(t, err)
	require.False(t, flipped)

	n, err = store.UnreadCount(ctx, client)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// Only the receiver may mark read.
	_, err = store.MarkRead(ctx, ids[1], pract)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = store.MarkRead(ctx, ids[1], uuid.New())
	require.ErrorIs(t, err, ErrForbidden)

	_, err = store.MarkRead(ctx, uuid.New(), client)
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestListOrderingNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newFakeMessageRepo()
	store := NewThreadStore(repo)

	pract := uuid.New()
	client := uuid.New()
	repo.link(client, pract)

	for _, body := range []string{"one", "two", "three"} {
		_, err := store.Append(ctx, Message{SenderID: client, ReceiverID: pract, Content: body})
		require.NoError(t, err)
	}

	received, err := store.ListReceived(ctx, pract)
	require.NoError(t, err)
	require.Len(t, received, 3)
	require.Equal(t, "three", received[0].Content)
	require.Equal(t, "one", received[2].Content)

	sent, err := store.ListSent(ctx, client)
	require.NoError(t, err)
	require.Len(t, sent, 3)
	require.Equal(t, "three", sent[0].Content)
}

func TestSoftDeleteHidesMessage(t *testing.T) {
	ctx := context.Background()
	repo := newFakeMessageRepo()
	store := NewThreadStore(repo)

	pract := uuid.New()
	client := uuid.New()
	repo.link(client, pract)

	m, err := store.Append(ctx, Message{SenderID: pract, ReceiverID: client, Content: "to be removed"})
	require.NoError(t, err)

	require.ErrorIs(t, store.SoftDelete(ctx, m.ID, uuid.New()), ErrForbidden)

	require.NoError(t, store.SoftDelete(ctx, m.ID, client))
	// Deleting twice is idempotent.
	require.NoError(t, store.SoftDelete(ctx, m.ID, client))

	received, err := store.ListReceived(ctx, client)
	require.NoError(t, err)
	require.Empty(t, received)

	n, err := store.UnreadCount(ctx, client)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestIsEligible(t *testing.T) {
	ctx := context.Background()
	repo := newFakeMessageRepo()
	store := NewThreadStore(repo)

	pract := uuid.New()
	client := uuid.New()
	repo.link(client, pract)

	ok, err := store.IsEligible(ctx, client, pract)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.IsEligible(ctx, client, uuid.New())
	require.NoError(t, err)
	require.False(t, ok)
}
