package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/carebridge/scheduling-core/internal/availability"
	"github.com/carebridge/scheduling-core/internal/config"
	"github.com/carebridge/scheduling-core/internal/db"
	"github.com/carebridge/scheduling-core/internal/observability"
	"github.com/carebridge/scheduling-core/internal/observability/metrics"
	redisclient "github.com/carebridge/scheduling-core/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	observability.InitLogger("hold-reaper", cfg.Env, cfg.LogLevel)
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("hold-reaper starting up")

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

	m := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	repo := availability.NewPgRepository(pgPool)
	locker := redisclient.NewRedisPractitionerLocker(rdb, cfg.LockTTL)
	index := availability.NewIndex(repo, locker, m, cfg.HoldTTL)

	// Run once at startup so a restart doesn't wait a full interval.
	runOnce(rootCtx, index)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping hold-reaper")
			return
		case <-ticker.C:
			runOnce(rootCtx, index)
		}
	}
}

func runOnce(ctx context.Context, index *availability.Index) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	released, err := index.ReleaseExpiredHolds(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("reaper run error")
		return
	}
	log.Info().Int("released", released).Dur("took", time.Since(start)).Msg("reaper run complete")
}
