package reporedis

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/posport-gateway/internal/errors"
	"github.com/jrsteele09/posport-gateway/session"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "posport:session:"

var _ session.Repo = (*RedisRepo)(nil)

// RedisRepo stores session records in Redis so several gateway instances share sessions.
// Record expiry is delegated to Redis key TTLs.
type RedisRepo struct {
	client *redis.Client
}

func NewRedisRepo(client *redis.Client) *RedisRepo {
	return &RedisRepo{client: client}
}

// Dial connects to addr and verifies the connection with a PING.
func Dial(ctx context.Context, addr, password string, db int) (*RedisRepo, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("[RedisRepo Dial] failed to reach redis at %s: %w", addr, err)
	}
	return NewRedisRepo(client), nil
}

func (r *RedisRepo) Get(ctx context.Context, sessionID string) ([]byte, error) {
	data, err := r.client.Get(ctx, key(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[RedisRepo Get] %w", err)
	}
	return data, nil
}

func (r *RedisRepo) Upsert(ctx context.Context, sessionID string, record []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key(sessionID), record, ttl).Err(); err != nil {
		return fmt.Errorf("[RedisRepo Upsert] %w", err)
	}
	return nil
}

func (r *RedisRepo) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("[RedisRepo Delete] %w", err)
	}
	return nil
}

func (r *RedisRepo) Close() error {
	return r.client.Close()
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}
