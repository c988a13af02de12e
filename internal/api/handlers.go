package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carebridge/scheduling-core/internal/availability"
	"github.com/carebridge/scheduling-core/internal/booking"
	"github.com/carebridge/scheduling-core/internal/portal"
)

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

func parseUUIDQuery(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.URL.Query().Get(name))
	return id, err == nil
}

func bookAppointmentHandler(svc *booking.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		clientID, err := uuid.Parse(req.ClientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id must be a valid UUID")
			return
		}
		practitionerID, err := uuid.Parse(req.PractitionerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}
		serviceID, err := uuid.Parse(req.ServiceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}
		start, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be RFC3339")
			return
		}

		appt, err := svc.Book(r.Context(), booking.BookRequest{
			ClientID:        clientID,
			PractitionerID:  practitionerID,
			ServiceID:       serviceID,
			Start:           start,
			DurationMinutes: req.DurationMinutes,
			Notes:           req.Notes,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

// transitionHandler serves confirm/cancel/complete, which differ only in
// the coordinator method invoked.
func transitionHandler(fn func(r *http.Request, id uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		resp, err := fn(r, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func listAppointmentsHandler(svc *booking.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := intQuery(r, "limit", 20)
		offset := intQuery(r, "offset", 0)

		if clientID, ok := parseUUIDQuery(r, "client_id"); ok {
			details, err := svc.ListForClient(r.Context(), clientID, limit, offset)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toDetailResponses(details))
			return
		}

		if practitionerID, ok := parseUUIDQuery(r, "practitioner_id"); ok {
			details, err := svc.ListForPractitioner(r.Context(), practitionerID, limit, offset)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toDetailResponses(details))
			return
		}

		writeError(w, http.StatusBadRequest, "missing_filter", "client_id or practitioner_id is required")
	}
}

func intQuery(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func checkAvailabilityHandler(index *availability.Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, ok := parseUUIDQuery(r, "practitioner_id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}
		start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be RFC3339")
			return
		}
		end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be RFC3339")
			return
		}

		free, err := index.IsFree(r.Context(), practitionerID, start, end)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			PractitionerID: practitionerID,
			Start:          start,
			End:            end,
			Available:      free,
		})
	}
}

func publishSlotHandler(index *availability.Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PublishSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		practitionerID, err := uuid.Parse(req.PractitionerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}
		start, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be RFC3339")
			return
		}
		end, err := time.Parse(time.RFC3339, req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be RFC3339")
			return
		}

		slot, err := index.Publish(r.Context(), practitionerID, start, end)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toSlotResponse(slot))
	}
}

// mapResult reshapes a settled result's value while keeping its status
// and error.
func mapResult[T, U any](r portal.AsyncResult[T], f func(T) U) portal.AsyncResult[U] {
	out := portal.AsyncResult[U]{Status: r.Status, Err: r.Err}
	if r.Status == portal.StatusSuccess {
		out.Value = f(r.Value)
	}
	return out
}

func clientDashboardHandler(builder *portal.Builder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_client_id", "id must be a valid UUID")
			return
		}

		view := builder.BuildClientDashboard(r.Context(), id)
		writeJSON(w, http.StatusOK, ClientDashboardResponse{
			ClientID:       view.ClientID,
			Appointments:   mapResult(view.Appointments, toDetailResponses),
			UnreadMessages: view.UnreadMessages,
		})
	}
}

func practitionerScheduleHandler(builder *portal.Builder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a valid UUID")
			return
		}

		view := builder.BuildPractitionerSchedule(r.Context(), id)
		writeJSON(w, http.StatusOK, PractitionerScheduleResponse{
			PractitionerID:   view.PractitionerID,
			WeekAppointments: mapResult(view.WeekAppointments, toDetailResponses),
			Recipients:       mapResult(view.Recipients, toRecipientResponses),
		})
	}
}
