package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/carebridge/scheduling-core/internal/messaging"
)

func sendMessageHandler(svc *messaging.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		senderID, err := uuid.Parse(req.SenderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_sender_id", "sender_id must be a valid UUID")
			return
		}
		receiverID, err := uuid.Parse(req.ReceiverID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_receiver_id", "receiver_id must be a valid UUID")
			return
		}

		var appointmentID *uuid.UUID
		if req.AppointmentID != "" {
			id, err := uuid.Parse(req.AppointmentID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
				return
			}
			appointmentID = &id
		}

		msg, err := svc.SendMessage(r.Context(), messaging.SendRequest{
			SenderID:      senderID,
			ReceiverID:    receiverID,
			Content:       req.Content,
			AppointmentID: appointmentID,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toMessageResponse(msg))
	}
}

func inboxHandler(svc *messaging.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := parseUUIDQuery(r, "user_id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "user_id must be a valid UUID")
			return
		}

		items, err := svc.Inbox(r.Context(), userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		out := make([]MessageResponse, 0, len(items))
		for i := range items {
			resp := toMessageResponse(&items[i].Message)
			resp.SenderName = items[i].SenderName
			out = append(out, resp)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func sentMessagesHandler(svc *messaging.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := parseUUIDQuery(r, "user_id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "user_id must be a valid UUID")
			return
		}

		msgs, err := svc.Sent(r.Context(), userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		out := make([]MessageResponse, 0, len(msgs))
		for i := range msgs {
			out = append(out, toMessageResponse(&msgs[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func unreadCountHandler(svc *messaging.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := parseUUIDQuery(r, "user_id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "user_id must be a valid UUID")
			return
		}

		count, err := svc.UnreadCount(r.Context(), userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, UnreadCountResponse{UnreadCount: count})
	}
}

func markReadHandler(svc *messaging.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messageID, ok := parseUUIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_message_id", "id must be a valid UUID")
			return
		}
		readerID, ok := parseUUIDQuery(r, "reader_id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_reader_id", "reader_id must be a valid UUID")
			return
		}

		if err := svc.MarkRead(r.Context(), messageID, readerID); err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusNoContent, nil)
	}
}

func deleteMessageHandler(svc *messaging.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messageID, ok := parseUUIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_message_id", "id must be a valid UUID")
			return
		}
		ownerID, ok := parseUUIDQuery(r, "owner_id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_owner_id", "owner_id must be a valid UUID")
			return
		}

		if err := svc.DeleteMessage(r.Context(), messageID, ownerID); err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusNoContent, nil)
	}
}

func recipientsHandler(svc *messaging.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, ok := parseUUIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a valid UUID")
			return
		}

		recipients, err := svc.FetchRecipients(r.Context(), practitionerID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRecipientResponses(recipients))
	}
}

func threadAppointmentsHandler(svc *messaging.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID, ok := parseUUIDQuery(r, "client_id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id must be a valid UUID")
			return
		}
		practitionerID, ok := parseUUIDQuery(r, "practitioner_id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}

		appts, err := svc.FetchAppointmentsForThread(r.Context(), clientID, practitionerID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			out = append(out, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}
