package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"seasonbot/internal/config"
	"seasonbot/internal/services"
)

// RedisStore keeps sessions in Redis so they survive restarts and can be
// shared by several bot processes. Idle expiry is the key TTL, refreshed on
// every Put.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// OpenRedis dials the configured server and verifies it answers.
func OpenRedis(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Sessions.RedisAddr,
		Password: cfg.Sessions.RedisPassword,
		DB:       cfg.Sessions.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, services.Wrap(services.ErrConfiguration, "session", "connect redis", cfg.Sessions.RedisAddr, err)
	}
	return NewRedisStore(client, cfg.Sessions.KeyPrefix, cfg.IdleTimeout()), nil
}

func (r *RedisStore) key(userID int64) string {
	return r.prefix + strconv.FormatInt(userID, 10)
}

func (r *RedisStore) Get(ctx context.Context, userID int64) (Session, error) {
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Idle(userID), nil
	}
	if err != nil {
		return Session{}, services.Wrap(services.ErrTransient, "session", "load", strconv.FormatInt(userID, 10), err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		// A corrupt entry is treated like an expired one.
		_ = r.client.Del(ctx, r.key(userID)).Err()
		return Idle(userID), nil
	}
	return s, nil
}

func (r *RedisStore) Put(ctx context.Context, s Session) error {
	if s.State == StateIdle {
		return r.Delete(ctx, s.UserID)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(s.UserID), data, r.ttl).Err(); err != nil {
		return services.Wrap(services.ErrTransient, "session", "save", strconv.FormatInt(s.UserID, 10), err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return services.Wrap(services.ErrTransient, "session", "delete", strconv.FormatInt(userID, 10), err)
	}
	return nil
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
