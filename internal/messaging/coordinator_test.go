package messaging

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/scheduling-core/internal/observability/metrics"
	"github.com/carebridge/scheduling-core/internal/profile"
)

type stubProfiles struct {
	known map[uuid.UUID]profile.Profile
}

func (s *stubProfiles) GetByID(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
	p, ok := s.known[id]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	return &p, nil
}

func (s *stubProfiles) ListByIDs(_ context.Context, ids []uuid.UUID) ([]profile.Profile, error) {
	var out []profile.Profile
	for _, id := range ids {
		if p, ok := s.known[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func newMessagingFixture(t *testing.T) (*Coordinator, *fakeMessageRepo, *stubProfiles) {
	t.Helper()
	repo := newFakeMessageRepo()
	profiles := &stubProfiles{known: map[uuid.UUID]profile.Profile{}}
	m := metrics.NewMessagingMetrics(prometheus.NewRegistry())
	return NewCoordinator(NewThreadStore(repo), profiles, nil, m), repo, profiles
}

func (s *stubProfiles) add(role profile.Role, first, last string) uuid.UUID {
	id := uuid.New()
	s.known[id] = profile.Profile{ID: id, Role: role, FirstName: first, LastName: last}
	return id
}

func TestSendMessageLogsEvent(t *testing.T) {
	ctx := context.Background()
	c, repo, profiles := newMessagingFixture(t)

	pract := profiles.add(profile.RolePractitioner, "Dana", "Wells")
	client := profiles.add(profile.RoleClient, "Casey", "Hart")
	repo.link(client, pract)

	msg, err := c.SendMessage(ctx, SendRequest{SenderID: pract, ReceiverID: client, Content: "see you monday"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, msg.ID)
	require.False(t, msg.IsRead)

	require.Equal(t, []string{EventMessageSent}, repo.events)

	n, err := c.UnreadCount(ctx, client)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSendMessageIneligibleDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	c, repo, profiles := newMessagingFixture(t)

	pract := profiles.add(profile.RolePractitioner, "Dana", "Wells")
	stranger := profiles.add(profile.RoleClient, "Riley", "Moss")

	_, err := c.SendMessage(ctx, SendRequest{SenderID: pract, ReceiverID: stranger, Content: "hello"})
	require.ErrorIs(t, err, ErrIneligibleRecipient)
	require.Empty(t, repo.messages)
	require.Empty(t, repo.events)
}

func TestInboxResolvesSenderNames(t *testing.T) {
	ctx := context.Background()
	c, repo, profiles := newMessagingFixture(t)

	pract := profiles.add(profile.RolePractitioner, "Dana", "Wells")
	client := profiles.add(profile.RoleClient, "Casey", "Hart")
	repo.link(client, pract)

	_, err := c.SendMessage(ctx, SendRequest{SenderID: pract, ReceiverID: client, Content: "first"})
	require.NoError(t, err)
	_, err = c.SendMessage(ctx, SendRequest{SenderID: client, ReceiverID: pract, Content: "reply"})
	require.NoError(t, err)

	inbox, err := c.Inbox(ctx, client)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.Equal(t, "Dana Wells", inbox[0].SenderName)
	require.Equal(t, "first", inbox[0].Content)

	// An empty inbox is not an error.
	empty, err := c.Inbox(ctx, uuid.New())
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestMarkReadCountsOnlyTheFlip(t *testing.T) {
	ctx := context.Background()
	repo := newFakeMessageRepo()
	profiles := &stubProfiles{known: map[uuid.UUID]profile.Profile{}}
	m := metrics.NewMessagingMetrics(prometheus.NewRegistry())
	c := NewCoordinator(NewThreadStore(repo), profiles, nil, m)

	pract := profiles.add(profile.RolePractitioner, "Dana", "Wells")
	client := profiles.add(profile.RoleClient, "Casey", "Hart")
	repo.link(client, pract)

	msg, err := c.SendMessage(ctx, SendRequest{SenderID: pract, ReceiverID: client, Content: "ping"})
	require.NoError(t, err)

	require.NoError(t, c.MarkRead(ctx, msg.ID, client))
	require.NoError(t, c.MarkRead(ctx, msg.ID, client))

	got, err := c.Inbox(ctx, client)
	require.NoError(t, err)
	require.True(t, got[0].IsRead)
	require.Equal(t, 1.0, testutil.ToFloat64(m.ReadCounter()))
}

func TestFetchRecipientsSortedAndDeduplicated(t *testing.T) {
	ctx := context.Background()
	c, repo, profiles := newMessagingFixture(t)

	pract := profiles.add(profile.RolePractitioner, "Dana", "Wells")
	alice := profiles.add(profile.RoleClient, "Alice", "Berg")
	zoe := profiles.add(profile.RoleClient, "Zoe", "Quinn")
	repo.recipients[alice] = Recipient{ID: alice, FirstName: "Alice", LastName: "Berg"}
	repo.recipients[zoe] = Recipient{ID: zoe, FirstName: "Zoe", LastName: "Quinn"}

	// Two appointments with the same client must not duplicate her.
	repo.link(zoe, pract)
	repo.link(alice, pract)
	repo.link(alice, pract)

	recipients, err := c.FetchRecipients(ctx, pract)
	require.NoError(t, err)
	require.Len(t, recipients, 2)
	require.Equal(t, "Alice", recipients[0].FirstName)
	require.Equal(t, "Zoe", recipients[1].FirstName)
}
