package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// AdminFlagCache memoizes allow-list answers per e-mail.
type AdminFlagCache interface {
	Get(ctx context.Context, email string) (value bool, found bool, err error)
	Set(ctx context.Context, email string, isAdmin bool) error
	Evict(ctx context.Context, email string) error
}

const adminFlagKeyPrefix = "admin-flag:"

type RedisAdminCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdminCache(client *redis.Client, ttl time.Duration) *RedisAdminCache {
	return &RedisAdminCache{client: client, ttl: ttl}
}

func (c *RedisAdminCache) Get(ctx context.Context, email string) (bool, bool, error) {
	v, err := c.client.Get(ctx, adminFlagKeyPrefix+normalizeEmail(email)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("admin cache get: %w", err)
	}
	return v == "true", true, nil
}

func (c *RedisAdminCache) Set(ctx context.Context, email string, isAdmin bool) error {
	v := "false"
	if isAdmin {
		v = "true"
	}
	if err := c.client.Set(ctx, adminFlagKeyPrefix+normalizeEmail(email), v, c.ttl).Err(); err != nil {
		return fmt.Errorf("admin cache set: %w", err)
	}
	return nil
}

func (c *RedisAdminCache) Evict(ctx context.Context, email string) error {
	if err := c.client.Del(ctx, adminFlagKeyPrefix+normalizeEmail(email)).Err(); err != nil {
		return fmt.Errorf("admin cache evict: %w", err)
	}
	return nil
}
