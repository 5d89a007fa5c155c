package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mediguard-server/internal/domain"
)

const redisPrefsKey = "mediguard:preferences"

// RedisStore keeps the preference record in Redis, for deployments that
// already run one alongside the service.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg domain.PrefsConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.PoolTimeout = cfg.PoolTimeout
	opts.MaxRetries = cfg.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{redis: client}, nil
}

// Get returns the stored record, or the defaults when the key is absent or
// the stored value is corrupted.
func (s *RedisStore) Get(ctx context.Context) (*domain.Preferences, error) {
	val, err := s.redis.Get(ctx, redisPrefsKey).Result()
	if err == redis.Nil {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}

	p := &domain.Preferences{}
	if err := json.Unmarshal([]byte(val), p); err != nil {
		// Corrupted entry, drop it and fall back to defaults
		s.redis.Del(ctx, redisPrefsKey)
		return Defaults(), nil
	}
	return p, nil
}

// Set writes the record. Preferences never expire.
func (s *RedisStore) Set(ctx context.Context, p *domain.Preferences) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if err := s.redis.Set(ctx, redisPrefsKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.redis.Close()
}
