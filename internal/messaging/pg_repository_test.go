package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/scheduling-core/internal/appointment"
)

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewPgRepository(mock), mock
}

func TestPgSetReadReportsFlip(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectExec("UPDATE messages").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	flipped, err := repo.SetRead(ctx, id)
	require.NoError(t, err)
	require.True(t, flipped)

	// Already-read rows match zero rows and report no flip.
	mock.ExpectExec("UPDATE messages").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	flipped, err = repo.SetRead(ctx, id)
	require.NoError(t, err)
	require.False(t, flipped)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetByIDMapsNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM messages").WithArgs(id).WillReturnError(pgx.ErrNoRows)
	_, err := repo.GetByID(context.Background(), id)
	require.ErrorIs(t, err, ErrMessageNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListReceivedScansRows(t *testing.T) {
	repo, mock := newMockRepo(t)
	receiver := uuid.New()
	sender := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows([]string{
		"id", "sender_id", "receiver_id", "content", "appointment_id", "created_at", "is_read", "is_deleted",
	}).
		AddRow(uuid.New(), sender, receiver, "newest", (*uuid.UUID)(nil), now, false, false).
		AddRow(uuid.New(), sender, receiver, "older", (*uuid.UUID)(nil), now.Add(-time.Hour), true, false)

	mock.ExpectQuery("SELECT (.+) FROM messages").WithArgs(receiver).WillReturnRows(rows)

	msgs, err := repo.ListReceived(context.Background(), receiver)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "newest", msgs[0].Content)
	require.True(t, msgs[1].IsRead)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAppointmentPartiesNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT client_id, practitioner_id").WithArgs(id).WillReturnError(pgx.ErrNoRows)
	_, _, err := repo.AppointmentParties(context.Background(), id)
	require.ErrorIs(t, err, appointment.ErrAppointmentNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
