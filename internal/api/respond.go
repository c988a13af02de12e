package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/carebridge/scheduling-core/internal/appointment"
	"github.com/carebridge/scheduling-core/internal/availability"
	"github.com/carebridge/scheduling-core/internal/booking"
	"github.com/carebridge/scheduling-core/internal/messaging"
	"github.com/carebridge/scheduling-core/internal/profile"
	redisclient "github.com/carebridge/scheduling-core/internal/redis"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps domain sentinels onto HTTP statuses. Conflicts
// that a client can resolve by retrying get 409.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation),
		errors.Is(err, messaging.ErrEmptyContent),
		errors.Is(err, availability.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())

	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, messaging.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, "message_not_found", err.Error())
	case errors.Is(err, profile.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "profile_not_found", err.Error())

	case errors.Is(err, availability.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, availability.ErrPractitionerBusy),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "calendar_busy", "calendar is being updated, please retry shortly")
	case errors.Is(err, availability.ErrHoldLost):
		writeError(w, http.StatusConflict, "hold_lost", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())

	case errors.Is(err, messaging.ErrIneligibleRecipient):
		writeError(w, http.StatusForbidden, "ineligible_recipient", err.Error())
	case errors.Is(err, messaging.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())

	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
