package portal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/scheduling-core/internal/appointment"
	"github.com/carebridge/scheduling-core/internal/messaging"
)

type stubAppointments struct {
	details []appointment.Detail
	err     error
	delay   time.Duration
}

func (s *stubAppointments) ListForClient(_ context.Context, _ uuid.UUID, _, _ int) ([]appointment.Detail, error) {
	time.Sleep(s.delay)
	return s.details, s.err
}

func (s *stubAppointments) ListForPractitionerWeek(_ context.Context, _ uuid.UUID) ([]appointment.Detail, error) {
	time.Sleep(s.delay)
	return s.details, s.err
}

type stubMessages struct {
	unread     int
	recipients []messaging.Recipient
	err        error
}

func (s *stubMessages) UnreadCount(_ context.Context, _ uuid.UUID) (int, error) {
	return s.unread, s.err
}

func (s *stubMessages) FetchRecipients(_ context.Context, _ uuid.UUID) ([]messaging.Recipient, error) {
	return s.recipients, s.err
}

func TestBuildClientDashboard(t *testing.T) {
	clientID := uuid.New()
	appts := &stubAppointments{details: []appointment.Detail{
		{Appointment: appointment.Appointment{ID: uuid.New(), ClientID: clientID}},
	}}
	b := NewBuilder(appts, &stubMessages{unread: 4})

	view := b.BuildClientDashboard(context.Background(), clientID)

	require.Equal(t, clientID, view.ClientID)
	require.Equal(t, StatusSuccess, view.Appointments.Status)
	require.Len(t, view.Appointments.Value, 1)
	require.Equal(t, StatusSuccess, view.UnreadMessages.Status)
	require.Equal(t, 4, view.UnreadMessages.Value)
}

func TestDashboardSectionsFailIndependently(t *testing.T) {
	boom := errors.New("messaging store down")
	appts := &stubAppointments{details: []appointment.Detail{}}
	b := NewBuilder(appts, &stubMessages{err: boom})

	view := b.BuildClientDashboard(context.Background(), uuid.New())

	require.Equal(t, StatusSuccess, view.Appointments.Status)
	require.Equal(t, StatusFailure, view.UnreadMessages.Status)
	require.ErrorIs(t, view.UnreadMessages.Err, boom)
}

func TestBuildPractitionerSchedule(t *testing.T) {
	practID := uuid.New()
	appts := &stubAppointments{
		details: []appointment.Detail{{Appointment: appointment.Appointment{ID: uuid.New(), PractitionerID: practID}}},
		delay:   10 * time.Millisecond,
	}
	msgs := &stubMessages{recipients: []messaging.Recipient{
		{ID: uuid.New(), FirstName: "Alice", LastName: "Berg"},
	}}
	b := NewBuilder(appts, msgs)

	view := b.BuildPractitionerSchedule(context.Background(), practID)

	require.Equal(t, practID, view.PractitionerID)
	require.True(t, view.WeekAppointments.Settled())
	require.Equal(t, StatusSuccess, view.WeekAppointments.Status)
	require.Equal(t, StatusSuccess, view.Recipients.Status)
	require.Equal(t, "Alice", view.Recipients.Value[0].FirstName)
}

func TestAsyncResultMarshalJSON(t *testing.T) {
	pending, err := json.Marshal(Pending[int]())
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"pending"}`, string(pending))

	success, err := json.Marshal(Success(7))
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"success","value":7}`, string(success))

	failure, err := json.Marshal(Failure[int](errors.New("nope")))
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"failure","error":"nope"}`, string(failure))
}

func TestResolve(t *testing.T) {
	r := Resolve(42, nil)
	require.Equal(t, StatusSuccess, r.Status)
	v, err := r.Unwrap()
	require.NoError(t, err)
	require.Equal(t, 42, v)

	r = Resolve(0, errors.New("fetch failed"))
	require.Equal(t, StatusFailure, r.Status)
	require.False(t, Pending[string]().Settled())
}
