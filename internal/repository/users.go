package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound is returned when a username has no matching row.
var ErrUserNotFound = errors.New("user not found")

// UserRecord is one row of the users table.
type UserRecord struct {
	ID           string
	Username     string
	PasswordHash string
}

// UserRepository persists user accounts.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a user repository backed by the given pool.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, user UserRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3)`,
		user.ID, user.Username, user.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("insert user %s: %w", user.Username, err)
	}
	return nil
}

// GetByUsername fetches a user row by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (UserRecord, error) {
	var user UserRecord
	err := r.db.QueryRow(ctx,
		`SELECT id, username, password_hash FROM users WHERE username = $1`,
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserRecord{}, ErrUserNotFound
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("query user %s: %w", username, err)
	}
	return user, nil
}

// Exists reports whether a username is taken.
func (r *UserRepository) Exists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE username = $1`,
		username,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count users %s: %w", username, err)
	}
	return count > 0, nil
}

// UpdatePassword replaces a user's password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $1 WHERE username = $2`,
		passwordHash, username,
	)
	if err != nil {
		return fmt.Errorf("update password for %s: %w", username, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
