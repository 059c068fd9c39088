package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/muzz-match/internal/config"
)

// LikeCountTTL bounds how stale a liked-you badge can get if an invalidation
// is lost.
const LikeCountTTL = time.Hour

// likeCountGenTTL keeps the invalidation counter well past any in-flight fill.
const likeCountGenTTL = 24 * time.Hour

// setIfGen stores a count only while the invalidation counter still holds the
// value the filler read before counting.
// KEYS[1]=count key; KEYS[2]=gen key; ARGV[1]=count; ARGV[2]=gen; ARGV[3]=ttl ms
var setIfGen = redis.NewScript(`
  local gen = redis.call('GET', KEYS[2]) or '0'
  if gen ~= ARGV[2] then
    return 0
  end
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
  return 1
`)

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

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// KeyForLikeCount generates Redis key for a user's liked-you count
func (c *RedisCache) KeyForLikeCount(userID uint64) string {
	return fmt.Sprintf("likes:count:%d", userID)
}

func (c *RedisCache) keyForLikeCountGen(userID uint64) string {
	return fmt.Sprintf("likes:count:gen:%d", userID)
}

// LikeCountVersion returns the invalidation counter for userID, 0 if unset.
// Read it before counting and hand it to SetLikeCountIfVersion.
func (c *RedisCache) LikeCountVersion(ctx context.Context, userID uint64) (int64, error) {
	n, err := c.Client.Get(ctx, c.keyForLikeCountGen(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// SetLikeCountIfVersion stores the count with LikeCountTTL unless the count
// was invalidated after version was read. stored is false in that case.
func (c *RedisCache) SetLikeCountIfVersion(ctx context.Context, userID uint64, count, version int64) (stored bool, err error) {
	n, err := setIfGen.Run(ctx, c.Client,
		[]string{c.KeyForLikeCount(userID), c.keyForLikeCountGen(userID)},
		strconv.FormatInt(count, 10),
		strconv.FormatInt(version, 10),
		strconv.FormatInt(LikeCountTTL.Milliseconds(), 10),
	).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetLikeCount returns the cached count. ok is false on a cache miss.
func (c *RedisCache) GetLikeCount(ctx context.Context, userID uint64) (count int64, ok bool, err error) {
	key := c.KeyForLikeCount(userID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// corrupt entry: treat as a miss so the caller recomputes
		_ = c.Client.Del(ctx, key).Err()
		return 0, false, nil
	}
	// refresh TTL since this user is active
	_ = c.Client.Expire(ctx, key, LikeCountTTL).Err()
	return n, true, nil
}

// InvalidateLikeCount drops the cached count so the next read recomputes it,
// and bumps the counter so a fill already in flight cannot write it back.
// Counting is filtered (passes exclude likers), so a blind INCR/DECR would
// drift; dropping the key is always correct.
func (c *RedisCache) InvalidateLikeCount(ctx context.Context, userID uint64) error {
	gen := c.keyForLikeCountGen(userID)
	_, err := c.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, c.KeyForLikeCount(userID))
		p.Incr(ctx, gen)
		p.Expire(ctx, gen, likeCountGenTTL)
		return nil
	})
	return err
}
