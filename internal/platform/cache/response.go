package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ResponseCache keeps rendered list responses in Redis for a short TTL.
// Writes bust the owning prefix; a singleflight group keeps concurrent
// misses from rebuilding the same payload more than once.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewResponseCache constructs a ResponseCache. A nil logger silences
// best-effort failure reporting.
func NewResponseCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ResponseCache{client: client, ttl: ttl, logger: logger}
}

// GetOrBuild returns the cached payload for key, building and storing it on
// a miss. A nil receiver or nil client degrades to calling build directly.
func (c *ResponseCache) GetOrBuild(ctx context.Context, key string, build func(context.Context) ([]byte, error)) ([]byte, error) {
	if c == nil || c.client == nil {
		return build(ctx)
	}
	if data, err := c.client.Get(ctx, c.key(key)).Bytes(); err == nil {
		return data, nil
	} else if !errors.Is(err, redis.Nil) {
		// Redis trouble is best-effort: fall through to a direct build.
		return build(ctx)
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		data, err := build(ctx)
		if err != nil {
			return nil, err
		}
		_ = c.client.Set(ctx, c.key(key), data, c.ttl).Err()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]byte), nil
}

// Bust removes every cached entry under prefix.
func (c *ResponseCache) Bust(ctx context.Context, prefix string) {
	if c == nil || c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, c.key(prefix)+"*", 0).Iterator()
	for iter.Next(ctx) {
		_ = c.client.Del(ctx, iter.Val()).Err()
	}
	// An interrupted scan leaves stale entries behind until the TTL clears
	// them; surface it instead of failing the write that triggered the bust.
	if err := iter.Err(); err != nil && c.logger != nil {
		c.logger.Warn("cache bust scan", slog.String("prefix", prefix), slog.Any("error", err))
	}
}

func (c *ResponseCache) key(k string) string {
	return "respcache:" + k
}
