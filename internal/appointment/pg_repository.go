package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool used by the repository; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool PgxPool
}

func NewPgRepository(pool PgxPool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, client_id, practitioner_id, service_id, start_at, duration_minutes, status, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.ClientID,
		&a.PractitionerID,
		&a.ServiceID,
		&a.StartAt,
		&a.DurationMinutes,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanDetail(row pgx.Row) (*Detail, error) {
	var d Detail

	err := row.Scan(
		&d.ID,
		&d.ClientID,
		&d.PractitionerID,
		&d.ServiceID,
		&d.StartAt,
		&d.DurationMinutes,
		&d.Status,
		&d.Notes,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.ClientName,
		&d.PractitionerName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &d, nil
}

func collectDetails(rows pgx.Rows) ([]Detail, error) {
	defer rows.Close()

	var result []Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

const detailSelect = `
	SELECT a.id, a.client_id, a.practitioner_id, a.service_id, a.start_at, a.duration_minutes, a.status, a.notes, a.created_at, a.updated_at,
	       c.first_name || ' ' || c.last_name AS client_name,
	       p.first_name || ' ' || p.last_name AS practitioner_name
	FROM appointments a
	JOIN profiles c ON c.id = a.client_id
	JOIN profiles p ON p.id = a.practitioner_id
`

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) CreatePending(ctx context.Context, p CreateParams) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, client_id, practitioner_id, service_id, start_at, duration_minutes, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, p.ClientID, p.PractitionerID, p.ServiceID, p.StartAt, p.DurationMinutes, p.Notes)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]Detail, error) {
	rows, err := r.pool.Query(ctx, detailSelect+`
		WHERE a.client_id = $1
		ORDER BY a.start_at DESC
		LIMIT $2 OFFSET $3
	`, clientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]Detail, error) {
	rows, err := r.pool.Query(ctx, detailSelect+`
		WHERE a.practitioner_id = $1
		ORDER BY a.start_at DESC
		LIMIT $2 OFFSET $3
	`, practitionerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) ListByPractitionerRange(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]Detail, error) {
	rows, err := r.pool.Query(ctx, detailSelect+`
		WHERE a.practitioner_id = $1
		  AND a.start_at >= $2
		  AND a.start_at <= $3
		ORDER BY a.start_at ASC
	`, practitionerID, start, end)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) ListShared(ctx context.Context, clientID, practitionerID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE client_id = $1
		  AND practitioner_id = $2
		ORDER BY start_at DESC
	`, clientID, practitionerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
