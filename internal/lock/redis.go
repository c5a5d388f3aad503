package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deletes the key only when it still holds our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker holds per-key leases in Redis so several server instances
// serialize on the same user.
type RedisLocker struct {
	rdb           redis.UniversalClient
	ttl           time.Duration
	retryInterval time.Duration
	waitTimeout   time.Duration
	scrRelease    *redis.Script
}

func NewRedisLocker(rdb redis.UniversalClient, ttl, retryInterval, waitTimeout time.Duration) *RedisLocker {
	l := &RedisLocker{
		rdb:           rdb,
		ttl:           ttl,
		retryInterval: retryInterval,
		waitTimeout:   waitTimeout,
		scrRelease:    redis.NewScript(releaseScript),
	}
	// preload script (best-effort)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = l.scrRelease.Load(ctx, rdb).Err()
	}()
	return l
}

func lockKey(key string) string { return fmt.Sprintf("lock:{%s}", key) }

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	deadline := time.Now().Add(l.waitTimeout)

	for {
		ok, err := l.rdb.SetNX(ctx, lockKey(key), token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := l.scrRelease.Run(releaseCtx, l.rdb, []string{lockKey(key)}, token).Err(); err != nil {
			zap.L().Warn("Failed to release redis lock",
				zap.String("key", key),
				zap.Error(err))
		}
	}, nil
}
