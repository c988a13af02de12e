package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type querier interface {
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

const slotColumns = `id, practitioner_id, start_at, end_at, state, hold_token, held_until, appointment_id, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.PractitionerID,
		&s.StartAt,
		&s.EndAt,
		&s.State,
		&s.HoldToken,
		&s.HeldUntil,
		&s.AppointmentID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func collectSlots(rows pgx.Rows) ([]Slot, error) {
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListLiveOverlapping(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, now time.Time) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE practitioner_id = $1
		  AND start_at < $3
		  AND end_at > $2
		  AND (state = 'booked' OR (state = 'held' AND held_until > $4))
	`, practitionerID, start, end, now)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (r *PgRepository) ListOverlapping(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE practitioner_id = $1
		  AND start_at < $3
		  AND end_at > $2
	`, practitionerID, start, end)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (r *PgRepository) FindOpenCovering(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE practitioner_id = $1
		  AND state = 'open'
		  AND start_at <= $2
		  AND end_at >= $3
		LIMIT 1
	`, practitionerID, start, end)

	s, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, ErrNoOpenRegion
		}
		return nil, err
	}
	return s, nil
}

func (r *PgRepository) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

// CarveHold removes the open row and reinserts it as a held core plus up
// to two open remainders, all in one transaction. The guarded DELETE is
// the row-level conflict check: if another session consumed the open row
// first, zero rows match and the carve fails with ErrSlotConflict.
func (r *PgRepository) CarveHold(ctx context.Context, open Slot, start, end time.Time, token uuid.UUID, heldUntil time.Time) (*Slot, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin carve hold: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		DELETE FROM availability_slots
		WHERE id = $1 AND state = 'open'
	`, open.ID)
	if err != nil {
		return nil, fmt.Errorf("consume open slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrSlotConflict
	}

	held, err := scanSlot(tx.QueryRow(ctx, `
		INSERT INTO availability_slots (id, practitioner_id, start_at, end_at, state, hold_token, held_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'held', $5, $6, now(), now())
		RETURNING `+slotColumns+`
	`, uuid.New(), open.PractitionerID, start, end, token, heldUntil))
	if err != nil {
		return nil, fmt.Errorf("insert held slot: %w", err)
	}

	if open.StartAt.Before(start) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO availability_slots (id, practitioner_id, start_at, end_at, state, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'open', now(), now())
		`, uuid.New(), open.PractitionerID, open.StartAt, start); err != nil {
			return nil, fmt.Errorf("insert leading remainder: %w", err)
		}
	}
	if end.Before(open.EndAt) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO availability_slots (id, practitioner_id, start_at, end_at, state, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'open', now(), now())
		`, uuid.New(), open.PractitionerID, end, open.EndAt); err != nil {
			return nil, fmt.Errorf("insert trailing remainder: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit carve hold: %w", err)
	}

	return held, nil
}

func (r *PgRepository) CommitHold(ctx context.Context, slotID, token, appointmentID uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE availability_slots
		SET state = 'booked',
		    appointment_id = $3,
		    hold_token = NULL,
		    held_until = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND state = 'held'
		  AND hold_token = $2
		RETURNING `+slotColumns+`
	`, slotID, token, appointmentID)

	s, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, ErrSlotConflict
		}
		return nil, err
	}
	return s, nil
}

func (r *PgRepository) ReleaseRange(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin release range: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE availability_slots
		SET state = 'open',
		    hold_token = NULL,
		    held_until = NULL,
		    appointment_id = NULL,
		    updated_at = now()
		WHERE practitioner_id = $1
		  AND state IN ('held', 'booked')
		  AND start_at < $3
		  AND end_at > $2
	`, practitionerID, start, end)
	if err != nil {
		return 0, fmt.Errorf("release slots: %w", err)
	}

	if err := coalesceOpen(ctx, tx, practitionerID); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit release range: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func (r *PgRepository) ReleaseHold(ctx context.Context, slotID, token uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin release hold: %w", err)
	}
	defer tx.Rollback(ctx)

	var practitionerID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE availability_slots
		SET state = 'open',
		    hold_token = NULL,
		    held_until = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND state = 'held'
		  AND hold_token = $2
		RETURNING practitioner_id
	`, slotID, token).Scan(&practitionerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("release hold: %w", err)
	}

	if err := coalesceOpen(ctx, tx, practitionerID); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit release hold: %w", err)
	}

	return true, nil
}

func (r *PgRepository) ReleaseExpiredInRange(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, now time.Time) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin release expired: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE availability_slots
		SET state = 'open',
		    hold_token = NULL,
		    held_until = NULL,
		    updated_at = now()
		WHERE practitioner_id = $1
		  AND state = 'held'
		  AND held_until <= $4
		  AND start_at < $3
		  AND end_at > $2
	`, practitionerID, start, end, now)
	if err != nil {
		return 0, fmt.Errorf("release expired holds: %w", err)
	}

	if tag.RowsAffected() > 0 {
		if err := coalesceOpen(ctx, tx, practitionerID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit release expired: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func (r *PgRepository) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE availability_slots
		SET state = 'open',
		    hold_token = NULL,
		    held_until = NULL,
		    updated_at = now()
		WHERE state = 'held'
		  AND held_until <= $1
		RETURNING practitioner_id
	`, now)
	if err != nil {
		return 0, fmt.Errorf("release expired holds: %w", err)
	}

	practitioners := map[uuid.UUID]struct{}{}
	count := 0
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		practitioners[id] = struct{}{}
		count++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for id := range practitioners {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return count, fmt.Errorf("begin coalesce: %w", err)
		}
		if err := coalesceOpen(ctx, tx, id); err != nil {
			_ = tx.Rollback(ctx)
			return count, err
		}
		if err := tx.Commit(ctx); err != nil {
			return count, fmt.Errorf("commit coalesce: %w", err)
		}
	}

	return count, nil
}

func (r *PgRepository) CreateOpenSlot(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_slots (id, practitioner_id, start_at, end_at, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'open', now(), now())
		RETURNING `+slotColumns+`
	`, uuid.New(), practitionerID, start, end)
	return scanSlot(row)
}

// coalesceOpen merges adjacent open slots until none share a boundary,
// keeping the practitioner's open regions maximal and gapless.
func coalesceOpen(ctx context.Context, q querier, practitionerID uuid.UUID) error {
	for {
		var leftID, rightID uuid.UUID
		var rightEnd time.Time

		err := q.QueryRow(ctx, `
			SELECT a.id, b.id, b.end_at
			FROM availability_slots a
			JOIN availability_slots b
			  ON b.practitioner_id = a.practitioner_id
			 AND b.start_at = a.end_at
			 AND b.state = 'open'
			WHERE a.practitioner_id = $1
			  AND a.state = 'open'
			LIMIT 1
		`, practitionerID).Scan(&leftID, &rightID, &rightEnd)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("find adjacent open slots: %w", err)
		}

		// The absorbed row goes first: the exclusion constraint checks
		// immediately, and the extended left range would overlap it.
		if _, err := q.Exec(ctx, `
			DELETE FROM availability_slots
			WHERE id = $1
		`, rightID); err != nil {
			return fmt.Errorf("drop merged slot: %w", err)
		}
		if _, err := q.Exec(ctx, `
			UPDATE availability_slots
			SET end_at = $2, updated_at = now()
			WHERE id = $1
		`, leftID, rightEnd); err != nil {
			return fmt.Errorf("extend open slot: %w", err)
		}
	}
}
