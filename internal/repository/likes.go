package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/atinyakov/observer/internal/models"
)

// foreignKeyViolation is the Postgres SQLSTATE for foreign_key_violation.
const foreignKeyViolation = "23503"

// PostgresLikeRepository stores which users liked which products.
type PostgresLikeRepository struct {
	DB *sql.DB
}

// NewPostgresLikeRepository creates a new PostgresLikeRepository.
func NewPostgresLikeRepository(db *sql.DB) *PostgresLikeRepository {
	return &PostgresLikeRepository{DB: db}
}

// AddLike records that userID likes productID. Liking twice is a no-op;
// an unknown product yields ErrNotFound.
func (r *PostgresLikeRepository) AddLike(ctx context.Context, userID string, productID int64) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO likes (user_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
	`, userID, productID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("AddLike: %w", err)
	}
	return nil
}

// RemoveLike deletes the like. Removing a missing like is a no-op.
func (r *PostgresLikeRepository) RemoveLike(ctx context.Context, userID string, productID int64) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM likes WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return fmt.Errorf("RemoveLike: %w", err)
	}
	return nil
}

// LikedProducts returns a page of products liked by userID, newest like first.
func (r *PostgresLikeRepository) LikedProducts(ctx context.Context, userID string, offset, limit int) ([]models.Product, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+productColumns+` FROM likes l
		JOIN products p ON p.id = l.product_id
		WHERE l.user_id = $1
		ORDER BY l.created_at DESC, p.id LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("LikedProducts: %w", err)
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	if err := attachHistory(ctx, r.DB, products); err != nil {
		return nil, err
	}
	return products, nil
}
