package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client *redis.Client
	prefix string
	log    *slog.Logger
}

func NewRedisCache(client *redis.Client, prefix string, log *slog.Logger) *RedisCache {
	if log == nil {
		log = slog.Default()
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
		log:    log.With(slog.String("component", "cache.redis")),
	}
}

// GetOrLoad treats Redis failures as misses: the cache never makes a read
// fail that the backing store could serve.
func (c *RedisCache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, dest any, load func(ctx context.Context) (any, error)) error {
	fullKey := c.prefix + key

	b, err := c.client.Get(ctx, fullKey).Bytes()
	switch {
	case err == nil:
		if err := json.Unmarshal(b, dest); err == nil {
			return nil
		}
		c.log.Warn("cache entry undecodable", slog.String("key", fullKey))
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn("cache read failed", slog.String("key", fullKey), slog.Any("err", err))
	}

	v, err := load(ctx)
	if err != nil {
		return err
	}
	b, err = json.Marshal(v)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, fullKey, b, ttl).Err(); err != nil {
		c.log.Warn("cache write failed", slog.String("key", fullKey), slog.Any("err", err))
	}
	return json.Unmarshal(b, dest)
}

func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, c.prefix+k)
	}
	return c.client.Del(ctx, full...).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
