package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/pkg/apperror"
)

const userColumns = `id, name, email, password_hash, role,
	COALESCE(bio,''), COALESCE(skills, '{}'), COALESCE(experience,''), COALESCE(location,''), COALESCE(phone,''), COALESCE(avatar,''),
	email_verified, created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Role,
		&u.Bio, &u.Skills, &u.Experience, &u.Location, &u.Phone, &u.Avatar,
		&u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// List returns all users for admin views.
func (r *Repository) List(ctx context.Context) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	list := []models.UserPublic{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u.ToPublic())
	}
	return list, rows.Err()
}

// Create inserts a new user. A taken email is reported as Conflict.
func (r *Repository) Create(ctx context.Context, name, email, passwordHash string, role models.Role) (*models.User, error) {
	q := `INSERT INTO users (id, name, email, password_hash, role)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, name, email, passwordHash, string(role)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperror.Conflict("email already registered")
		}
		return nil, err
	}
	return u, nil
}

// ProfileUpdate holds optional profile fields; nil fields are left unchanged.
type ProfileUpdate struct {
	Name       *string
	Email      *string
	Bio        *string
	Skills     []string
	Experience *string
	Location   *string
	Phone      *string
	Avatar     *string
}

// UpdateProfile applies a partial profile update and returns the stored user.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, p ProfileUpdate) (*models.User, error) {
	q := `UPDATE users SET
			name = COALESCE($2, name),
			email = COALESCE($3, email),
			bio = COALESCE($4, bio),
			skills = COALESCE($5, skills),
			experience = COALESCE($6, experience),
			location = COALESCE($7, location),
			phone = COALESCE($8, phone),
			avatar = COALESCE($9, avatar),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, id, p.Name, p.Email, p.Bio, p.Skills, p.Experience, p.Location, p.Phone, p.Avatar))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperror.Conflict("email already registered")
		}
		return nil, err
	}
	return u, nil
}
