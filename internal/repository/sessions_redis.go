package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atinyakov/observer/internal/models"
)

const sessionKeyPrefix = "observer:session:"

// RedisSessionRepository keeps sessions as Redis keys expiring with the
// session. It is used instead of the sessions table when configured.
type RedisSessionRepository struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisSessionRepository wraps an existing client; its lifecycle is
// managed by the caller.
func NewRedisSessionRepository(client *redis.Client) *RedisSessionRepository {
	return &RedisSessionRepository{client: client, now: time.Now}
}

// CreateSession stores s with a TTL matching ExpiresAt.
func (r *RedisSessionRepository) CreateSession(ctx context.Context, s models.Session) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+s.Token, s.UserID, ttl).Err(); err != nil {
		return fmt.Errorf("CreateSession: %w", err)
	}
	return nil
}

// GetSession returns the session for token or ErrNotFound.
func (r *RedisSessionRepository) GetSession(ctx context.Context, token string) (models.Session, error) {
	key := sessionKeyPrefix + token
	pipe := r.client.Pipeline()
	get := pipe.Get(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return models.Session{}, fmt.Errorf("GetSession: %w", err)
	}
	userID, err := get.Result()
	if errors.Is(err, redis.Nil) {
		return models.Session{}, ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("GetSession: %w", err)
	}
	return models.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: r.now().Add(ttl.Val()),
	}, nil
}

// DeleteSession revokes token.
func (r *RedisSessionRepository) DeleteSession(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("DeleteSession: %w", err)
	}
	return nil
}
