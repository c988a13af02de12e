package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carebridge/scheduling-core/internal/appointment"
	"github.com/carebridge/scheduling-core/internal/availability"
	"github.com/carebridge/scheduling-core/internal/observability/metrics"
	"github.com/carebridge/scheduling-core/internal/profile"
	"github.com/carebridge/scheduling-core/internal/timerange"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
)

var (
	ErrValidation    = errors.New("invalid booking request")
	ErrBookingFailed = errors.New("booking could not be completed, please retry")
)

// BookRequest carries everything needed to book a new appointment.
type BookRequest struct {
	ClientID        uuid.UUID
	PractitionerID  uuid.UUID
	ServiceID       uuid.UUID
	Start           time.Time
	DurationMinutes int
	Notes           string
}

func (r BookRequest) validate(now time.Time) error {
	switch {
	case r.ClientID == uuid.Nil:
		return fmt.Errorf("%w: client_id is required", ErrValidation)
	case r.PractitionerID == uuid.Nil:
		return fmt.Errorf("%w: practitioner_id is required", ErrValidation)
	case r.ServiceID == uuid.Nil:
		return fmt.Errorf("%w: service_id is required", ErrValidation)
	case r.DurationMinutes <= 0:
		return fmt.Errorf("%w: duration_minutes must be positive", ErrValidation)
	case !r.Start.After(now):
		return fmt.Errorf("%w: start must be in the future", ErrValidation)
	}
	return nil
}

// Coordinator orchestrates booking end-to-end and is the only layer that
// performs compensating actions: every successful hold ends in either a
// commit or a release.
type Coordinator struct {
	appointments appointment.Repository
	index        *availability.Index
	profiles     profile.Repository
	metrics      *metrics.BookingMetrics
	now          func() time.Time
}

func NewCoordinator(appointments appointment.Repository, index *availability.Index, profiles profile.Repository, m *metrics.BookingMetrics) *Coordinator {
	return &Coordinator{
		appointments: appointments,
		index:        index,
		profiles:     profiles,
		metrics:      m,
		now:          time.Now,
	}
}

// Book validates the request, holds the slot, persists the appointment in
// pending, then commits the hold. The three steps are atomic from the
// caller's point of view: any failure after the hold releases it.
func (c *Coordinator) Book(ctx context.Context, req BookRequest) (*appointment.Appointment, error) {
	began := c.now()

	if err := req.validate(began); err != nil {
		c.metrics.ObserveBooking("invalid", time.Since(began).Seconds())
		return nil, err
	}

	if _, err := c.profiles.GetByID(ctx, req.ClientID); err != nil {
		c.metrics.ObserveBooking("invalid", time.Since(began).Seconds())
		if errors.Is(err, profile.ErrProfileNotFound) {
			return nil, fmt.Errorf("%w: unknown client", ErrValidation)
		}
		return nil, fmt.Errorf("load client: %w", err)
	}

	end := req.Start.Add(time.Duration(req.DurationMinutes) * time.Minute)

	hold, err := c.index.Hold(ctx, req.PractitionerID, req.Start, end)
	if err != nil {
		c.metrics.ObserveBooking("conflict", time.Since(began).Seconds())
		return nil, err
	}

	appt, err := c.appointments.CreatePending(ctx, appointment.CreateParams{
		ClientID:        req.ClientID,
		PractitionerID:  req.PractitionerID,
		ServiceID:       req.ServiceID,
		StartAt:         req.Start,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	})
	if err != nil {
		// Compensate: the hold must not outlive a failed booking.
		c.releaseHold(ctx, hold, "compensation")
		c.metrics.ObserveBooking("failed", time.Since(began).Seconds())
		return nil, fmt.Errorf("%w: %v", ErrBookingFailed, err)
	}

	if err := c.index.Commit(ctx, hold, appt.ID); err != nil {
		// The appointment row exists but the slot could not be claimed;
		// cancel the row and free our hold.
		if _, cancelErr := c.appointments.UpdateStatus(ctx, appt.ID, appointment.StatusPending, appointment.StatusCancelled); cancelErr != nil {
			log.Ctx(ctx).Error().Err(cancelErr).
				Str("appointment_id", appt.ID.String()).
				Msg("failed to cancel appointment after commit failure")
		} else {
			c.logEvent(ctx, appt.ID, EventAppointmentCancelled, map[string]any{
				"previous_status": string(appointment.StatusPending),
				"reason":          "commit_failed",
			})
		}
		// A lost hold means the lease lapsed and the range now belongs to
		// whoever reclaimed it; there is nothing of ours left to release.
		if !errors.Is(err, availability.ErrHoldLost) {
			c.releaseHold(ctx, hold, "compensation")
		}
		c.metrics.ObserveBooking("failed", time.Since(began).Seconds())
		return nil, fmt.Errorf("%w: %v", ErrBookingFailed, err)
	}

	c.logEvent(ctx, appt.ID, EventAppointmentBooked, map[string]any{
		"client_id":        req.ClientID.String(),
		"practitioner_id":  req.PractitionerID.String(),
		"start_at":         req.Start,
		"duration_minutes": req.DurationMinutes,
	})
	c.metrics.ObserveBooking("success", time.Since(began).Seconds())

	return appt, nil
}

// Confirm moves a pending appointment to confirmed. The slot was already
// booked at creation, so there is no slot side effect.
func (c *Coordinator) Confirm(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	appt, err := c.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if err := appointment.CheckTransition(appt.Status, appointment.StatusConfirmed); err != nil {
		return nil, err
	}

	updated, err := c.appointments.UpdateStatus(ctx, appt.ID, appointment.StatusPending, appointment.StatusConfirmed)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			// Lost a race with another transition.
			return nil, appointment.ErrInvalidTransition
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	c.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{})

	return updated, nil
}

// Cancel moves an appointment to cancelled and releases its slot. Calling
// it on an already-cancelled appointment is a no-op success with no second
// release.
func (c *Coordinator) Cancel(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	appt, err := c.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status == appointment.StatusCancelled {
		return appt, nil
	}
	if err := appointment.CheckTransition(appt.Status, appointment.StatusCancelled); err != nil {
		return nil, err
	}

	updated, err := c.appointments.UpdateStatus(ctx, appt.ID, appt.Status, appointment.StatusCancelled)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			// Someone else transitioned it first; treat a concurrent
			// cancellation as success without releasing twice.
			current, getErr := c.appointments.GetByID(ctx, id)
			if getErr == nil && current.Status == appointment.StatusCancelled {
				return current, nil
			}
			return nil, appointment.ErrInvalidTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	if err := c.index.Release(ctx, updated.PractitionerID, updated.StartAt, updated.EndAt(), "cancelled"); err != nil {
		// The status change stands; the range will be reclaimed by the
		// reaper path or a retried release.
		log.Ctx(ctx).Error().Err(err).
			Str("appointment_id", updated.ID.String()).
			Msg("failed to release slot after cancellation")
	}

	c.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"previous_status": string(appt.Status),
	})

	return updated, nil
}

// Complete marks a confirmed appointment as completed. Idempotent on
// repeat calls.
func (c *Coordinator) Complete(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	appt, err := c.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status == appointment.StatusCompleted {
		return appt, nil
	}
	if err := appointment.CheckTransition(appt.Status, appointment.StatusCompleted); err != nil {
		return nil, err
	}

	updated, err := c.appointments.UpdateStatus(ctx, appt.ID, appointment.StatusConfirmed, appointment.StatusCompleted)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			current, getErr := c.appointments.GetByID(ctx, id)
			if getErr == nil && current.Status == appointment.StatusCompleted {
				return current, nil
			}
			return nil, appointment.ErrInvalidTransition
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	c.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{})

	return updated, nil
}

// ListForClient returns a client's appointments, newest first.
func (c *Coordinator) ListForClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]appointment.Detail, error) {
	limit, offset = clampPage(limit, offset)
	details, err := c.appointments.ListByClient(ctx, clientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by client: %w", err)
	}
	return details, nil
}

// ListForPractitioner returns a practitioner's appointments, newest first.
func (c *Coordinator) ListForPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]appointment.Detail, error) {
	limit, offset = clampPage(limit, offset)
	details, err := c.appointments.ListByPractitioner(ctx, practitionerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by practitioner: %w", err)
	}
	return details, nil
}

// ListForPractitionerWeek returns the practitioner's appointments in the
// week containing now, ordered by start time.
func (c *Coordinator) ListForPractitionerWeek(ctx context.Context, practitionerID uuid.UUID) ([]appointment.Detail, error) {
	week := timerange.WeekRange(c.now())
	details, err := c.appointments.ListByPractitionerRange(ctx, practitionerID, week.Start, week.End)
	if err != nil {
		return nil, fmt.Errorf("list week appointments: %w", err)
	}
	return details, nil
}

func (c *Coordinator) releaseHold(ctx context.Context, hold *availability.Hold, reason string) {
	if err := c.index.ReleaseHold(ctx, hold, reason); err != nil {
		// The lease window bounds the damage: the reaper frees the hold
		// once HeldUntil passes.
		log.Ctx(ctx).Error().Err(err).
			Str("practitioner_id", hold.PractitionerID.String()).
			Time("start", hold.StartAt).
			Msg("compensating release failed, hold will expire with its lease")
	}
}

func (c *Coordinator) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := appointment.EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     c.now(),
	}

	if err := c.appointments.InsertEvent(ctx, ev); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
