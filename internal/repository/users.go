// Package repository provides PostgreSQL and Redis persistence for users,
// sessions, products and likes.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/observer/internal/models"
)

// PostgresUserRepository implements user operations using a PostgreSQL database.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository with the given database connection.
// db must be a valid *sql.DB connected to a PostgreSQL instance.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// UserExists checks whether a user with the specified username exists.
func (r *PostgresUserRepository) UserExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`,
		username,
	).Scan(&exists)
	return exists, err
}

// CreateUser inserts u. A taken username or subject yields ErrConflict.
func (r *PostgresUserRepository) CreateUser(ctx context.Context, u models.User) error {
	_, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO users (id, username, email, password_hash, subject) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Username, nullString(u.Email), u.PasswordHash, nullString(u.Subject),
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("CreateUser: %w", err)
	}
	return nil
}

const userColumns = `id, username, COALESCE(email, ''), password_hash, COALESCE(subject, '')`

// GetUserByID returns the user with the given id or ErrNotFound.
func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id string) (models.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserByUsername returns the user with the given username or ErrNotFound.
func (r *PostgresUserRepository) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// GetUserBySubject returns the user linked to an identity-provider subject.
func (r *PostgresUserRepository) GetUserBySubject(ctx context.Context, subject string) (models.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE subject = $1`, subject)
}

func (r *PostgresUserRepository) getUser(ctx context.Context, query string, arg any) (models.User, error) {
	var u models.User
	err := r.DB.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("getUser: %w", err)
	}
	return u, nil
}

// DeleteUser removes the user; sessions and likes cascade.
func (r *PostgresUserRepository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("DeleteUser: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
