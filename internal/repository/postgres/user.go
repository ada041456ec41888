package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/model"
	"github.com/sakif/tasklist/internal/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo implements repository.UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user and fills in ID and CreatedAt.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (email, password_hash)
VALUES ($1, $2)
RETURNING id, created_at`
	err := r.db.Pool.QueryRow(ctx, q, u.Email, u.PasswordHash).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return apperror.Conflict("user", u.Email)
	}
	if err != nil {
		return fmt.Errorf("postgres: inserting user: %w", err)
	}
	return nil
}

// GetByEmail selects a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `
SELECT id, email, password_hash, created_at
FROM users WHERE email=$1`
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: getting user by email: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
