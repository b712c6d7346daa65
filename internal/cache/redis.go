// Package cache stores the latest market snapshot in Redis so API replicas can
// serve it without recomputing.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tierwatch/internal/config"
	"tierwatch/internal/model"
)

const (
	MarketUpdateKey = "tierwatch:market:update"
	MarketStatsKey  = "tierwatch:market:stats"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// RedisCache wraps a Redis client with JSON values and a fixed TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg *config.RedisConfig) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}
	return &RedisCache{rdb: rdb, ttl: cfg.TTL}, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// Set stores value as JSON under key.
func (c *RedisCache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.rdb.Set(ctx, key, data, c.ttl).Err()
}

// Get decodes the JSON stored under key into dest.
func (c *RedisCache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// PutMarketUpdate stores the latest push payload.
func (c *RedisCache) PutMarketUpdate(ctx context.Context, payload any) error {
	return c.Set(ctx, MarketUpdateKey, payload)
}

// PutMarketStats stores the latest market stats.
func (c *RedisCache) PutMarketStats(ctx context.Context, stats model.MarketStats) error {
	return c.Set(ctx, MarketStatsKey, stats)
}

// MarketStats returns the cached stats or ErrMiss.
func (c *RedisCache) MarketStats(ctx context.Context) (model.MarketStats, error) {
	var stats model.MarketStats
	err := c.Get(ctx, MarketStatsKey, &stats)
	return stats, err
}
