package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"artmarket/internal/domain"
)

// ErrEmailTaken indica violación de unicidad del email.
var ErrEmailTaken = errors.New("email already registered")

// IdentityRepository define el contrato de persistencia para identidades.
type IdentityRepository interface {
	Create(ctx context.Context, identity domain.Identity) error
	GetByID(ctx context.Context, id string) (domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (domain.Identity, error)
}

// PgIdentityRepository implementa IdentityRepository usando pgxpool.
type PgIdentityRepository struct {
	pool *pgxpool.Pool
}

func NewPgIdentityRepository(pool *pgxpool.Pool) *PgIdentityRepository {
	return &PgIdentityRepository{pool: pool}
}

func (r *PgIdentityRepository) Create(ctx context.Context, identity domain.Identity) error {
	const query = `
		INSERT INTO identities (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query,
		identity.ID,
		identity.Email,
		identity.PasswordHash,
		identity.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *PgIdentityRepository) GetByID(ctx context.Context, id string) (domain.Identity, error) {
	const query = `
		SELECT id, email, password_hash, created_at
		FROM identities
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

func (r *PgIdentityRepository) GetByEmail(ctx context.Context, email string) (domain.Identity, error) {
	const query = `
		SELECT id, email, password_hash, created_at
		FROM identities
		WHERE email = $1
	`
	return r.scanOne(ctx, query, email)
}

func (r *PgIdentityRepository) scanOne(ctx context.Context, query string, arg any) (domain.Identity, error) {
	var ident domain.Identity
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&ident.ID,
		&ident.Email,
		&ident.PasswordHash,
		&ident.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Identity{}, err
	}
	return ident, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
