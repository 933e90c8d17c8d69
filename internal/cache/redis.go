package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/heartline/internal/config"
)

// CounterTTL is how long a cached counter survives without being read.
const CounterTTL = time.Hour

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// KeyForLikeCount generates Redis key for the number of likes a user received.
func (c *RedisCache) KeyForLikeCount(userID string) string {
	return fmt.Sprintf("likes:count:%s", userID)
}

// KeyForUnread generates Redis key for a user's unread notification count.
func (c *RedisCache) KeyForUnread(userID string) string {
	return fmt.Sprintf("notifications:unread:%s", userID)
}

// GetCounter reads a cached counter. ok is false on a cache miss.
// A hit refreshes the TTL since the owner is active.
func (c *RedisCache) GetCounter(ctx context.Context, key string) (n int64, ok bool, err error) {
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	n, err = strconv.ParseInt(val, 10, 64)
	if err != nil {
		// corrupted entry, treat as a miss
		_ = c.Client.Del(ctx, key).Err()
		return 0, false, nil
	}
	_ = c.Client.Expire(ctx, key, CounterTTL).Err()
	return n, true, nil
}

// SetCounter stores a counter computed from the database.
func (c *RedisCache) SetCounter(ctx context.Context, key string, n int64) error {
	return c.Client.Set(ctx, key, n, CounterTTL).Err()
}

// incrIfPresent only moves counters that are already cached; a missing key
// is rebuilt from the database on the next read.
var incrIfPresent = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	local n = redis.call("INCRBY", KEYS[1], ARGV[1])
	if n < 0 then
		redis.call("SET", KEYS[1], 0)
	end
	redis.call("EXPIRE", KEYS[1], ARGV[2])
	return 1
end
return 0
`)

// Bump adds delta to a cached counter when it is present.
func (c *RedisCache) Bump(ctx context.Context, key string, delta int64) error {
	return incrIfPresent.Run(ctx, c.Client, []string{key}, delta, int64(CounterTTL/time.Second)).Err()
}

// Invalidate drops the given keys.
func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.Client.Del(ctx, keys...).Err()
}
