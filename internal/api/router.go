package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carebridge/scheduling-core/internal/availability"
	"github.com/carebridge/scheduling-core/internal/booking"
	"github.com/carebridge/scheduling-core/internal/messaging"
	"github.com/carebridge/scheduling-core/internal/portal"
)

type RouterConfig struct {
	Booking   *booking.Coordinator
	Messaging *messaging.Coordinator
	Portal    *portal.Builder
	Index     *availability.Index
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", bookAppointmentHandler(cfg.Booking))
		r.Get("/", listAppointmentsHandler(cfg.Booking))
		r.Post("/{id}/confirm", transitionHandler(func(req *http.Request, id uuid.UUID) (any, error) {
			appt, err := cfg.Booking.Confirm(req.Context(), id)
			if err != nil {
				return nil, err
			}
			return toAppointmentResponse(appt), nil
		}))
		r.Post("/{id}/cancel", transitionHandler(func(req *http.Request, id uuid.UUID) (any, error) {
			appt, err := cfg.Booking.Cancel(req.Context(), id)
			if err != nil {
				return nil, err
			}
			return toAppointmentResponse(appt), nil
		}))
		r.Post("/{id}/complete", transitionHandler(func(req *http.Request, id uuid.UUID) (any, error) {
			appt, err := cfg.Booking.Complete(req.Context(), id)
			if err != nil {
				return nil, err
			}
			return toAppointmentResponse(appt), nil
		}))
	})

	r.Route("/availability", func(r chi.Router) {
		r.Get("/", checkAvailabilityHandler(cfg.Index))
		r.Post("/", publishSlotHandler(cfg.Index))
	})

	r.Route("/messages", func(r chi.Router) {
		r.Post("/", sendMessageHandler(cfg.Messaging))
		r.Get("/inbox", inboxHandler(cfg.Messaging))
		r.Get("/sent", sentMessagesHandler(cfg.Messaging))
		r.Get("/unread-count", unreadCountHandler(cfg.Messaging))
		r.Get("/thread-appointments", threadAppointmentsHandler(cfg.Messaging))
		r.Post("/{id}/read", markReadHandler(cfg.Messaging))
		r.Delete("/{id}", deleteMessageHandler(cfg.Messaging))
	})

	r.Get("/practitioners/{id}/recipients", recipientsHandler(cfg.Messaging))

	r.Route("/portal", func(r chi.Router) {
		r.Get("/client/{id}", clientDashboardHandler(cfg.Portal))
		r.Get("/practitioner/{id}", practitionerScheduleHandler(cfg.Portal))
	})

	return r
}
