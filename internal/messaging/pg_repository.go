package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carebridge/scheduling-core/internal/appointment"
)

// PgxPool is the subset of pgxpool.Pool the repository needs; pgxmock
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

const messageColumns = `id, sender_id, receiver_id, content, appointment_id, created_at, is_read, is_deleted`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message

	err := row.Scan(
		&m.ID,
		&m.SenderID,
		&m.ReceiverID,
		&m.Content,
		&m.AppointmentID,
		&m.CreatedAt,
		&m.IsRead,
		&m.IsDeleted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	return &m, nil
}

func collectMessages(rows pgx.Rows) ([]Message, error) {
	defer rows.Close()

	var result []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) Insert(ctx context.Context, msg Message) (*Message, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, content, appointment_id, created_at, is_read, is_deleted)
		VALUES ($1, $2, $3, $4, $5, now(), false, false)
		RETURNING `+messageColumns+`
	`, id, msg.SenderID, msg.ReceiverID, msg.Content, msg.AppointmentID)

	return scanMessage(row)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = $1
	`, id)
	return scanMessage(row)
}

func (r *PgRepository) ListReceived(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE receiver_id = $1
		  AND is_deleted = false
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

func (r *PgRepository) ListSent(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE sender_id = $1
		  AND is_deleted = false
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

func (r *PgRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM messages
		WHERE receiver_id = $1
		  AND is_read = false
		  AND is_deleted = false
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (r *PgRepository) SetRead(ctx context.Context, messageID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET is_read = true
		WHERE id = $1
		  AND is_read = false
	`, messageID)
	if err != nil {
		return false, fmt.Errorf("set read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRepository) SetDeleted(ctx context.Context, messageID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET is_deleted = true
		WHERE id = $1
	`, messageID)
	if err != nil {
		return fmt.Errorf("set deleted: %w", err)
	}
	return nil
}

func (r *PgRepository) SharedAppointmentExists(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE (client_id = $1 AND practitioner_id = $2)
			   OR (client_id = $2 AND practitioner_id = $1)
		)
	`, a, b).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check shared appointment: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) AppointmentParties(ctx context.Context, appointmentID uuid.UUID) (uuid.UUID, uuid.UUID, error) {
	var clientID, practitionerID uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT client_id, practitioner_id
		FROM appointments
		WHERE id = $1
	`, appointmentID).Scan(&clientID, &practitionerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, uuid.Nil, appointment.ErrAppointmentNotFound
		}
		return uuid.Nil, uuid.Nil, err
	}
	return clientID, practitionerID, nil
}

func (r *PgRepository) ListEligibleRecipients(ctx context.Context, practitionerID uuid.UUID) ([]Recipient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT p.id, p.first_name, p.last_name
		FROM appointments a
		JOIN profiles p ON p.id = a.client_id
		WHERE a.practitioner_id = $1
		ORDER BY p.first_name ASC
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Recipient
	for rows.Next() {
		var rec Recipient
		if err := rows.Scan(&rec.ID, &rec.FirstName, &rec.LastName); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, eventType string, payload []byte) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, payload, created_at)
		VALUES ($1, $2, now())
	`, eventType, payload)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}
