package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"artmarket/internal/domain"
)

// ProfileRepository opera sobre la relación profiles.
type ProfileRepository interface {
	GetProfile(ctx context.Context, id string) (domain.Profile, error)
	UpsertProfile(ctx context.Context, profile domain.Profile) (domain.Profile, error)
	UpdateProfile(ctx context.Context, profile domain.Profile) (domain.Profile, error)
}

// PgProfileRepository implementa ProfileRepository usando pgxpool.
type PgProfileRepository struct {
	pool *pgxpool.Pool
}

func NewPgProfileRepository(pool *pgxpool.Pool) *PgProfileRepository {
	return &PgProfileRepository{pool: pool}
}

const profileColumns = `id, first_name, last_name, email, role, telephone, country, avatar_url, created_at, updated_at`

// GetProfile devuelve domain.ErrProfileNotFound cuando no hay fila.
func (r *PgProfileRepository) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return scanProfile(r.pool.QueryRow(ctx, query, id))
}

func (r *PgProfileRepository) UpsertProfile(ctx context.Context, profile domain.Profile) (domain.Profile, error) {
	const query = `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name  = EXCLUDED.last_name,
			email      = EXCLUDED.email,
			role       = EXCLUDED.role,
			telephone  = EXCLUDED.telephone,
			country    = EXCLUDED.country,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + profileColumns
	return scanProfile(r.pool.QueryRow(ctx, query,
		profile.ID,
		profile.FirstName,
		profile.LastName,
		profile.Email,
		profile.Role.String(),
		profile.Telephone,
		profile.Country,
		profile.AvatarURL,
		profile.CreatedAt,
		profile.UpdatedAt,
	))
}

func (r *PgProfileRepository) UpdateProfile(ctx context.Context, profile domain.Profile) (domain.Profile, error) {
	const query = `
		UPDATE profiles SET
			first_name = $2,
			last_name  = $3,
			role       = $4,
			telephone  = $5,
			country    = $6,
			avatar_url = $7,
			updated_at = $8
		WHERE id = $1
		RETURNING ` + profileColumns
	return scanProfile(r.pool.QueryRow(ctx, query,
		profile.ID,
		profile.FirstName,
		profile.LastName,
		profile.Role.String(),
		profile.Telephone,
		profile.Country,
		profile.AvatarURL,
		profile.UpdatedAt,
	))
}

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var (
		p    domain.Profile
		role string
	)
	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&role,
		&p.Telephone,
		&p.Country,
		&p.AvatarURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, err
	}
	p.Role = domain.ParseRole(role)
	return p, nil
}
