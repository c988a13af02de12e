package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/carebridge/scheduling-core/internal/api"
	"github.com/carebridge/scheduling-core/internal/appointment"
	"github.com/carebridge/scheduling-core/internal/availability"
	"github.com/carebridge/scheduling-core/internal/booking"
	"github.com/carebridge/scheduling-core/internal/config"
	"github.com/carebridge/scheduling-core/internal/db"
	"github.com/carebridge/scheduling-core/internal/messaging"
	"github.com/carebridge/scheduling-core/internal/observability"
	"github.com/carebridge/scheduling-core/internal/observability/metrics"
	"github.com/carebridge/scheduling-core/internal/portal"
	"github.com/carebridge/scheduling-core/internal/profile"
	redisclient "github.com/carebridge/scheduling-core/internal/redis"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	observability.InitLogger("api-server", cfg.Env, cfg.LogLevel)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	messagingMetrics := metrics.NewMessagingMetrics(prometheus.DefaultRegisterer)

	slotRepo := availability.NewPgRepository(pgPool)
	locker := redisclient.NewRedisPractitionerLocker(rdb, cfg.LockTTL)
	index := availability.NewIndex(slotRepo, locker, bookingMetrics, cfg.HoldTTL)

	apptRepo := appointment.NewPgRepository(pgPool)
	profileRepo := profile.NewPgRepository(pgPool)
	bookingSvc := booking.NewCoordinator(apptRepo, index, profileRepo, bookingMetrics)

	threadStore := messaging.NewThreadStore(messaging.NewPgRepository(pgPool))
	messagingSvc := messaging.NewCoordinator(threadStore, profileRepo, apptRepo, messagingMetrics)

	portalBuilder := portal.NewBuilder(bookingSvc, messagingSvc)

	router := api.NewRouter(api.RouterConfig{
		Booking:   bookingSvc,
		Messaging: messagingSvc,
		Portal:    portalBuilder,
		Index:     index,
		PgPool:    pgPool,
		Redis:     rdb,
		Env:       cfg.Env,
		Version:   version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
