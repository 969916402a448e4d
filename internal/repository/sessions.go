package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/observer/internal/models"
)

// PostgresSessionRepository stores sessions in the sessions table.
type PostgresSessionRepository struct {
	DB *sql.DB
}

// NewPostgresSessionRepository creates a new PostgresSessionRepository.
func NewPostgresSessionRepository(db *sql.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{DB: db}
}

// CreateSession stores s.
func (r *PostgresSessionRepository) CreateSession(ctx context.Context, s models.Session) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES ($1, $2, $3)`,
		s.Token, s.UserID, s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("CreateSession: %w", err)
	}
	return nil
}

// GetSession returns the session for token or ErrNotFound. Expired rows are
// returned as-is; callers check Expired.
func (r *PostgresSessionRepository) GetSession(ctx context.Context, token string) (models.Session, error) {
	var s models.Session
	err := r.DB.QueryRowContext(ctx,
		`SELECT token, user_id, expires_at FROM sessions WHERE token = $1`, token,
	).Scan(&s.Token, &s.UserID, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("GetSession: %w", err)
	}
	return s, nil
}

// DeleteSession revokes token. Revoking an unknown token is not an error.
func (r *PostgresSessionRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("DeleteSession: %w", err)
	}
	return nil
}
