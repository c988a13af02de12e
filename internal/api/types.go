package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/scheduling-core/internal/appointment"
	"github.com/carebridge/scheduling-core/internal/availability"
	"github.com/carebridge/scheduling-core/internal/messaging"
	"github.com/carebridge/scheduling-core/internal/portal"
)

type BookAppointmentRequest struct {
	ClientID        string `json:"client_id"`
	PractitionerID  string `json:"practitioner_id"`
	ServiceID       string `json:"service_id"`
	Start           string `json:"start"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	ClientID        uuid.UUID `json:"client_id"`
	PractitionerID  uuid.UUID `json:"practitioner_id"`
	ServiceID       uuid.UUID `json:"service_id"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		ClientID:        a.ClientID,
		PractitionerID:  a.PractitionerID,
		ServiceID:       a.ServiceID,
		StartAt:         a.StartAt,
		EndAt:           a.EndAt(),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Notes:           a.Notes,
	}
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	ClientName       string `json:"client_name"`
	PractitionerName string `json:"practitioner_name"`
}

func toDetailResponses(details []appointment.Detail) []AppointmentDetailResponse {
	out := make([]AppointmentDetailResponse, 0, len(details))
	for i := range details {
		out = append(out, AppointmentDetailResponse{
			AppointmentResponse: toAppointmentResponse(&details[i].Appointment),
			ClientName:          details[i].ClientName,
			PractitionerName:    details[i].PractitionerName,
		})
	}
	return out
}

type SendMessageRequest struct {
	SenderID      string `json:"sender_id"`
	ReceiverID    string `json:"receiver_id"`
	Content       string `json:"content"`
	AppointmentID string `json:"appointment_id,omitempty"`
}

type MessageResponse struct {
	ID            uuid.UUID  `json:"id"`
	SenderID      uuid.UUID  `json:"sender_id"`
	ReceiverID    uuid.UUID  `json:"receiver_id"`
	Content       string     `json:"content"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	IsRead        bool       `json:"is_read"`
	SenderName    string     `json:"sender_name,omitempty"`
}

func toMessageResponse(m *messaging.Message) MessageResponse {
	return MessageResponse{
		ID:            m.ID,
		SenderID:      m.SenderID,
		ReceiverID:    m.ReceiverID,
		Content:       m.Content,
		AppointmentID: m.AppointmentID,
		CreatedAt:     m.CreatedAt,
		IsRead:        m.IsRead,
	}
}

type RecipientResponse struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

func toRecipientResponses(recipients []messaging.Recipient) []RecipientResponse {
	out := make([]RecipientResponse, 0, len(recipients))
	for _, rec := range recipients {
		out = append(out, RecipientResponse{ID: rec.ID, FirstName: rec.FirstName, LastName: rec.LastName})
	}
	return out
}

type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}

type ClientDashboardResponse struct {
	ClientID       uuid.UUID                                       `json:"client_id"`
	Appointments   portal.AsyncResult[[]AppointmentDetailResponse] `json:"appointments"`
	UnreadMessages portal.AsyncResult[int]                         `json:"unread_messages"`
}

type PractitionerScheduleResponse struct {
	PractitionerID   uuid.UUID                                       `json:"practitioner_id"`
	WeekAppointments portal.AsyncResult[[]AppointmentDetailResponse] `json:"week_appointments"`
	Recipients       portal.AsyncResult[[]RecipientResponse]         `json:"recipients"`
}

type PublishSlotRequest struct {
	PractitionerID string `json:"practitioner_id"`
	Start          string `json:"start"`
	End            string `json:"end"`
}

type SlotResponse struct {
	ID             uuid.UUID `json:"id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at"`
	State          string    `json:"state"`
}

func toSlotResponse(s *availability.Slot) SlotResponse {
	return SlotResponse{
		ID:             s.ID,
		PractitionerID: s.PractitionerID,
		StartAt:        s.StartAt,
		EndAt:          s.EndAt,
		State:          string(s.State),
	}
}

type AvailabilityResponse struct {
	PractitionerID uuid.UUID `json:"practitioner_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Available      bool      `json:"available"`
}
