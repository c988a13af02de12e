package portal

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/carebridge/scheduling-core/internal/appointment"
	"github.com/carebridge/scheduling-core/internal/messaging"
)

// AppointmentSource is the slice of the booking coordinator the portal
// projections read from.
type AppointmentSource interface {
	ListForClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]appointment.Detail, error)
	ListForPractitionerWeek(ctx context.Context, practitionerID uuid.UUID) ([]appointment.Detail, error)
}

// MessageSource is the slice of the messaging coordinator the portal
// projections read from.
type MessageSource interface {
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	FetchRecipients(ctx context.Context, practitionerID uuid.UUID) ([]messaging.Recipient, error)
}

// ClientDashboard is the client portal's landing view. Each section
// settles on its own: a failed unread count does not blank out the
// appointment list.
type ClientDashboard struct {
	ClientID       uuid.UUID                         `json:"client_id"`
	Appointments   AsyncResult[[]appointment.Detail] `json:"appointments"`
	UnreadMessages AsyncResult[int]                  `json:"unread_messages"`
}

// PractitionerSchedule is the practitioner portal's landing view:
// this week's appointments plus the clients they may message.
type PractitionerSchedule struct {
	PractitionerID   uuid.UUID                          `json:"practitioner_id"`
	WeekAppointments AsyncResult[[]appointment.Detail]  `json:"week_appointments"`
	Recipients       AsyncResult[[]messaging.Recipient] `json:"recipients"`
}

// Builder assembles per-role portal views, fetching each section
// concurrently.
type Builder struct {
	appointments AppointmentSource
	messages     MessageSource
}

func NewBuilder(appointments AppointmentSource, messages MessageSource) *Builder {
	return &Builder{appointments: appointments, messages: messages}
}

const dashboardPageSize = 20

// BuildClientDashboard fetches the client's appointments and unread
// count in parallel and settles both fields before returning.
func (b *Builder) BuildClientDashboard(ctx context.Context, clientID uuid.UUID) ClientDashboard {
	view := ClientDashboard{
		ClientID:       clientID,
		Appointments:   Pending[[]appointment.Detail](),
		UnreadMessages: Pending[int](),
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		view.Appointments = Resolve(b.appointments.ListForClient(ctx, clientID, dashboardPageSize, 0))
	}()
	go func() {
		defer wg.Done()
		view.UnreadMessages = Resolve(b.messages.UnreadCount(ctx, clientID))
	}()

	wg.Wait()
	return view
}

// BuildPractitionerSchedule fetches the current week's appointments and
// the eligible message recipients in parallel.
func (b *Builder) BuildPractitionerSchedule(ctx context.Context, practitionerID uuid.UUID) PractitionerSchedule {
	view := PractitionerSchedule{
		PractitionerID:   practitionerID,
		WeekAppointments: Pending[[]appointment.Detail](),
		Recipients:       Pending[[]messaging.Recipient](),
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		view.WeekAppointments = Resolve(b.appointments.ListForPractitionerWeek(ctx, practitionerID))
	}()
	go func() {
		defer wg.Done()
		view.Recipients = Resolve(b.messages.FetchRecipients(ctx, practitionerID))
	}()

	wg.Wait()
	return view
}
