package redis

import (
	"context"
	"fmt"
	"time"

	"flatnas/config"
	"flatnas/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// NewClient connects to the Redis instance that backs the shared request
// limiter. It returns nil without error when no address is configured.
func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,

		// A single dashboard process needs only a handful of connections.
		PoolSize:     5,
		MinIdleConns: 1,
		MaxIdleConns: 5,
		PoolTimeout:  2 * time.Second,

		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,

		ConnMaxIdleTime: 5 * time.Minute,
		ConnMaxLifetime: 30 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	logger.WithFields(map[string]any{
		"address": cfg.Address,
		"db":      cfg.DB,
	}).Info("Connected to Redis")
	return client, nil
}
