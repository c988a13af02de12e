package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/carebridge/scheduling-core/internal/config"
	"github.com/carebridge/scheduling-core/internal/db"
)

// The simulator hammers the booking API with overlapping requests and
// then asks Postgres whether any practitioner ended up double booked.

type SimConfig struct {
	APIBaseURL        string
	Duration          time.Duration
	Workers           int
	CancelRatio       float64
	ConfirmRatio      float64
	ClientLimit       int
	PractitionerLimit int
	PostgresDSN       string
}

type DataPool struct {
	Clients       []uuid.UUID
	Practitioners []uuid.UUID
	ServiceID     uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment() (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rand.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, p50, p95
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	booking OperationMetrics
	confirm OperationMetrics
	cancel  OperationMetrics
}

func main() {
	log.Info().Msg("simulator starting")

	cfg := loadSimConfig()
	if err := validateSimConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}
	log.Info().
		Int("clients", len(dataPool.Clients)).
		Int("practitioners", len(dataPool.Practitioners)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()

	if err := verifyNoDoubleBooking(context.Background(), pgPool); err != nil {
		log.Fatal().Err(err).Msg("INVARIANT VIOLATED")
	}
	log.Info().Msg("no double booking detected")
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load base config")
	}

	return SimConfig{
		APIBaseURL:        getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:          getDuration("SIM_DURATION", 30*time.Second),
		Workers:           getInt("SIM_WORKERS", 10),
		CancelRatio:       getFloat("SIM_CANCEL_RATIO", 0.1),
		ConfirmRatio:      getFloat("SIM_CONFIRM_RATIO", 0.2),
		ClientLimit:       getInt("SIM_CLIENT_LIMIT", 1000),
		PractitionerLimit: getInt("SIM_PRACTITIONER_LIMIT", 10),
		PostgresDSN:       baseCfg.PostgresDSN,
	}
}

func validateSimConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dp := &DataPool{ServiceID: uuid.New()}

	load := func(role string, limit int, dst *[]uuid.UUID) error {
		rows, err := pool.Query(ctx, `SELECT id FROM profiles WHERE role = $1 LIMIT $2`, role, limit)
		if err != nil {
			return fmt.Errorf("load %ss: %w", role, err)
		}
		defer rows.Close()
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return err
			}
			*dst = append(*dst, id)
		}
		return rows.Err()
	}

	if err := load("client", cfg.ClientLimit, &dp.Clients); err != nil {
		return nil, err
	}
	if err := load("practitioner", cfg.PractitionerLimit, &dp.Practitioners); err != nil {
		return nil, err
	}
	if len(dp.Clients) == 0 || len(dp.Practitioners) == 0 {
		return nil, fmt.Errorf("no seeded profiles found, run cmd/seed first")
	}
	return dp, nil
}

func (s *Simulator) Run() {
	log.Info().
		Dur("duration", s.config.Duration).
		Int("workers", s.config.Workers).
		Msg("simulation running")

	deadline := time.Now().Add(s.config.Duration)
	var wg sync.WaitGroup
	for w := 0; w < s.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				s.step()
			}
		}()
	}
	wg.Wait()
}

func (s *Simulator) step() {
	roll := rand.Float64()
	switch {
	case roll < s.config.CancelRatio:
		s.transition("cancel", &s.cancel)
	case roll < s.config.CancelRatio+s.config.ConfirmRatio:
		s.transition("confirm", &s.confirm)
	default:
		s.book()
	}
}

// book targets a small window on a random practitioner's calendar next
// week; few practitioners and narrow windows keep the contention high.
func (s *Simulator) book() {
	clientID := s.pool.Clients[rand.Intn(len(s.pool.Clients))]
	practID := s.pool.Practitioners[rand.Intn(len(s.pool.Practitioners))]

	day := time.Now().AddDate(0, 0, 1+rand.Intn(5)).Truncate(24 * time.Hour)
	start := day.Add(9*time.Hour + time.Duration(rand.Intn(16))*30*time.Minute)

	body, _ := json.Marshal(map[string]any{
		"client_id":        clientID.String(),
		"practitioner_id":  practID.String(),
		"service_id":       s.pool.ServiceID.String(),
		"start":            start.Format(time.RFC3339),
		"duration_minutes": 30,
	})

	began := time.Now()
	resp, err := s.client.Post(s.config.APIBaseURL+"/appointments", "application/json", bytes.NewReader(body))
	latency := time.Since(began)
	if err != nil {
		s.booking.Record(latency, false, false)
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusCreated:
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err == nil {
			s.pool.AddAppointment(created.ID)
		}
		s.booking.Record(latency, true, false)
	case http.StatusConflict:
		s.booking.Record(latency, false, true)
	default:
		s.booking.Record(latency, false, false)
	}
}

func (s *Simulator) transition(action string, om *OperationMetrics) {
	id, ok := s.pool.RandomAppointment()
	if !ok {
		return
	}

	began := time.Now()
	resp, err := s.client.Post(fmt.Sprintf("%s/appointments/%s/%s", s.config.APIBaseURL, id, action), "application/json", nil)
	latency := time.Since(began)
	if err != nil {
		om.Record(latency, false, false)
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		om.Record(latency, true, false)
	case http.StatusConflict:
		om.Record(latency, false, true)
	default:
		om.Record(latency, false, false)
	}
}

func (s *Simulator) PrintReport() {
	report := func(name string, om *OperationMetrics) {
		avg, p50, p95 := om.Stats()
		log.Info().
			Str("op", name).
			Int64("total", atomic.LoadInt64(&om.Total)).
			Int64("success", atomic.LoadInt64(&om.Success)).
			Int64("conflict", atomic.LoadInt64(&om.Conflict)).
			Int64("error", atomic.LoadInt64(&om.Error)).
			Dur("avg", avg).
			Dur("p50", p50).
			Dur("p95", p95).
			Msg("results")
	}
	report("book", &s.booking)
	report("confirm", &s.confirm)
	report("cancel", &s.cancel)
}

// verifyNoDoubleBooking fails when any practitioner has two live slots
// overlapping in time.
func verifyNoDoubleBooking(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM availability_slots a
		JOIN availability_slots b
		  ON a.practitioner_id = b.practitioner_id
		 AND a.id < b.id
		 AND a.start_at < b.end_at
		 AND b.start_at < a.end_at
		WHERE a.state = 'booked'
		  AND b.state = 'booked'
	`).Scan(&count)
	if err != nil {
		return fmt.Errorf("verify query: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("found %d overlapping booked slot pairs", count)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}
