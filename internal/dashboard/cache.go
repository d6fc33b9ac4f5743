package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const summaryKey = "dashboard:summary"

// Cache stores the computed summary between claim changes.
type Cache interface {
	Get(ctx context.Context) (Summary, bool, error)
	Set(ctx context.Context, s Summary, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// RedisCache keeps the summary as JSON under a single key with a native TTL.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context) (Summary, bool, error) {
	data, err := c.client.Get(ctx, summaryKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Summary{}, false, nil
	}
	if err != nil {
		return Summary{}, false, err
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return Summary{}, false, err
	}
	return s, true, nil
}

func (c *RedisCache) Set(ctx context.Context, s Summary, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, summaryKey, data, ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, summaryKey).Err()
}

var _ Cache = (*RedisCache)(nil)
