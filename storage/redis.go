package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

// NewRedis builds a client from either a redis:// URL or a bare host:port.
func NewRedis(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		redisURL = "localhost:6379"
	}

	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return redis.NewClient(opts), nil
	}

	return redis.NewClient(&redis.Options{
		Addr: redisURL,
		DB:   0,
	}), nil
}

// PingRedis fails when the server cannot be reached.
func PingRedis(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
