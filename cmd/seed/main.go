package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/carebridge/scheduling-core/internal/db"
)

func main() {
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	practitioners, err := seedProfiles(context.Background(), pool, "practitioner", 50)
	if err != nil {
		log.Fatal().Err(err).Msg("seed practitioners")
	}
	if _, err := seedProfiles(context.Background(), pool, "client", 2000); err != nil {
		log.Fatal().Err(err).Msg("seed clients")
	}
	if err := seedOpenSlots(context.Background(), pool, practitioners); err != nil {
		log.Fatal().Err(err).Msg("seed availability")
	}

	log.Info().Msg("seed complete")
}

func seedProfiles(ctx context.Context, pool *pgxpool.Pool, role string, count int) ([]uuid.UUID, error) {
	log.Info().Str("role", role).Int("count", count).Msg("seeding profiles")

	const batchSize = 500
	ids := make([]uuid.UUID, 0, count)

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO profiles (id, role, first_name, last_name, email, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`, id, role, gofakeit.FirstName(), gofakeit.LastName(), email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
	}

	log.Info().Str("role", role).Int("count", count).Msg("profiles seeded")
	return ids, nil
}

// seedOpenSlots publishes a 9:00-17:00 open region per practitioner per
// weekday for the next two weeks. Regions start whole; booking carves
// them up later.
func seedOpenSlots(ctx context.Context, pool *pgxpool.Pool, practitioners []uuid.UUID) error {
	log.Info().Int("practitioners", len(practitioners)).Msg("seeding availability")

	dayStart := time.Now().Truncate(24 * time.Hour).Add(24 * time.Hour)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	total := 0
	for _, practID := range practitioners {
		for d := 0; d < 14; d++ {
			day := dayStart.AddDate(0, 0, d)
			if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
				continue
			}

			start := day.Add(9 * time.Hour)
			end := day.Add(17 * time.Hour)

			_, err := tx.Exec(ctx, `
				INSERT INTO availability_slots (id, practitioner_id, start_at, end_at, state, created_at, updated_at)
				VALUES ($1, $2, $3, $4, 'open', now(), now())
			`, uuid.New(), practID, start, end)
			if err != nil {
				return err
			}
			total++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Info().Int("slots", total).Msg("availability seeded")
	return nil
}
