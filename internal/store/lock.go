package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a best-effort mutual exclusion lock on a Redis key. It
// serializes transcript updates for one conversation across instances.
type RedisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
	retry  time.Duration
	logger *slog.Logger
}

// RedisLockerConfig holds configuration for RedisLocker.
type RedisLockerConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // lock expiry, default 10s
	Retry    time.Duration // poll interval while waiting, default 50ms
	Logger   *slog.Logger
}

func NewRedisLocker(cfg RedisLockerConfig) *RedisLocker {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisLocker(rdb, cfg)
}

func newRedisLocker(client redis.Cmdable, cfg RedisLockerConfig) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.Retry <= 0 {
		cfg.Retry = 50 * time.Millisecond
	}
	return &RedisLocker{client: client, ttl: cfg.TTL, retry: cfg.Retry, logger: cfg.Logger}
}

// Lock blocks until the key is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	key = "lock:" + key

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return func() {
				// Release with a fresh context so a cancelled caller still frees the key.
				rctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
					l.logger.Warn("failed to release lock", "key", key, "error", err)
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}
