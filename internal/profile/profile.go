package profile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrProfileNotFound = errors.New("profile not found")

type Role string

const (
	RoleClient       Role = "client"
	RolePractitioner Role = "practitioner"
	RoleAdmin        Role = "admin"
)

type Profile struct {
	ID        uuid.UUID
	Role      Role
	FirstName string
	LastName  string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]Profile, error)
}

type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool Querier
}

func NewPgRepository(pool Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Role,
		&p.FirstName,
		&p.LastName,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, role, first_name, last_name, email, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`, id)
	return scanProfile(row)
}

func (r *PgRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, role, first_name, last_name, email, created_at, updated_at
		FROM profiles
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
