package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"farmfresh-backend/internal/models"
	"farmfresh-backend/pkg/logging"
)

const keyPrefix = "weather:"

// RedisConfig configures the Redis-backed cache
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache stores snapshots as JSON strings so every server instance sees the same weather
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.StructuredLogger
}

// NewRedisCache connects and pings Redis
func NewRedisCache(cfg RedisConfig, logger *logging.StructuredLogger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info(ctx, "[CACHE_INIT] Redis weather cache connected", logging.Fields{
		"addr": cfg.Addr,
		"ttl":  cfg.TTL.String(),
	})

	return &RedisCache{client: client, ttl: cfg.TTL, logger: logger}, nil
}

// Get reads a snapshot; Redis errors are logged and reported as a miss
func (r *RedisCache) Get(ctx context.Context, city string) (*models.WeatherSnapshot, bool) {
	data, err := r.client.Get(ctx, keyPrefix+city).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn(ctx, "[CACHE_ERROR] Redis get failed", logging.Fields{"city": city, "error": err.Error()})
		}
		return nil, false
	}

	var w models.WeatherSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		r.logger.Warn(ctx, "[CACHE_ERROR] Corrupt cached snapshot", logging.Fields{"city": city, "error": err.Error()})
		return nil, false
	}
	return &w, true
}

// Set stores a snapshot with the configured TTL
func (r *RedisCache) Set(ctx context.Context, city string, snapshot *models.WeatherSnapshot) error {
	if snapshot == nil {
		return nil
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+city, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot in Redis: %w", err)
	}
	return nil
}

// HealthCheck pings Redis
func (r *RedisCache) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the client
func (r *RedisCache) Close() error {
	return r.client.Close()
}
