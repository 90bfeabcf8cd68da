package grouplock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLockTimeout is returned when the lease could not be acquired before
// the context expired.
var ErrLockTimeout = errors.New("grouplock: timed out waiting for group lock")

// releaseScript deletes the key only if it still holds our token, so an
// expired lease that another writer picked up is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lease lock shared by every process talking to the same Redis.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
	logger *zap.Logger
}

// NewRedis returns a Redis locker. ttl bounds how long a crashed holder can
// block the group.
func NewRedis(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{
		rdb:    rdb,
		prefix: "taskgroups:lock:",
		ttl:    ttl,
		retry:  25 * time.Millisecond,
		logger: logger,
	}
}

// Lock polls SET NX PX until it owns key or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := r.prefix + key
	token := uuid.NewString()

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrLockTimeout
			}
			return nil, ctx.Err()
		case <-timer.C:
		}

		ok, err := r.rdb.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return r.unlockFunc(k, token), nil
		}
		timer.Reset(r.retry)
	}
}

func (r *Redis) unlockFunc(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { r.release(key, token) })
	}
}

// release runs on a fresh context; the caller's may already be cancelled.
func (r *Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, r.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		r.logger.Warn("group lock release failed", zap.String("key", key), zap.Error(err))
	}
}
