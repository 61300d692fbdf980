/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for frequently accessed data.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iago1460/django-radio-sub000/internal/models"
)

// Default TTL values for different cache types
const (
	DefaultProgrammeTTL     = 1 * time.Hour
	DefaultLiveSchedulesTTL = 10 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyProgramme     = "radioco:cache:programme:"      // + programme_id
	KeyLiveSchedules = "radioco:cache:live_schedules:" // + programme_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	ProgrammeTTL     time.Duration
	LiveSchedulesTTL time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:        "localhost:6379",
		ProgrammeTTL:     DefaultProgrammeTTL,
		LiveSchedulesTTL: DefaultLiveSchedulesTTL,
		DisableOnError:   true,
	}
}

// Cache provides Redis-backed caching with graceful fallback. A
// failing Redis never breaks a request; the caller just hits the
// database.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// Use SCAN to find keys (safer than KEYS for production)
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// GetProgramme retrieves a cached programme by ID.
func (c *Cache) GetProgramme(ctx context.Context, programmeID string) (*models.Programme, bool) {
	var p models.Programme
	found, err := c.get(ctx, KeyProgramme+programmeID, &p)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("programme_id", programmeID).Msg("programme cache hit")
	return &p, true
}

// SetProgramme caches a programme.
func (c *Cache) SetProgramme(ctx context.Context, p *models.Programme) error {
	return c.set(ctx, KeyProgramme+p.ID, p, c.config.ProgrammeTTL)
}

// GetLiveSchedules retrieves the cached live schedules of a programme.
// Associations are stripped before caching; callers reattach the
// programme.
func (c *Cache) GetLiveSchedules(ctx context.Context, programmeID string) ([]*models.Schedule, bool) {
	var schedules []*models.Schedule
	found, err := c.get(ctx, KeyLiveSchedules+programmeID, &schedules)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("programme_id", programmeID).Int("count", len(schedules)).Msg("live schedules cache hit")
	return schedules, true
}

// SetLiveSchedules caches the live schedules of a programme.
func (c *Cache) SetLiveSchedules(ctx context.Context, programmeID string, schedules []*models.Schedule) error {
	stripped := make([]*models.Schedule, len(schedules))
	for i, s := range schedules {
		clone := *s
		clone.Programme = nil
		clone.Source = nil
		clone.FromCollection = nil
		stripped[i] = &clone
	}
	return c.set(ctx, KeyLiveSchedules+programmeID, stripped, c.config.LiveSchedulesTTL)
}

// InvalidateProgramme removes all caches tied to a programme.
func (c *Cache) InvalidateProgramme(ctx context.Context, programmeID string) error {
	c.logger.Debug().Str("programme_id", programmeID).Msg("invalidating programme caches")

	if err := c.delete(ctx, KeyProgramme+programmeID); err != nil {
		return err
	}
	return c.delete(ctx, KeyLiveSchedules+programmeID)
}

// FlushAll removes all cached data (use sparingly).
func (c *Cache) FlushAll(ctx context.Context) error {
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, "radioco:cache:*")
}
