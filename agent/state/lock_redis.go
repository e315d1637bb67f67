package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/chative-bank-onboarding/pkg/redislock"
)

const (
	defaultLockKeyPrefix = "bank:lock:"
	defaultLockTTL       = 2 * time.Minute
	defaultLockRetry     = 50 * time.Millisecond
)

// RedisLocker serializes turns of one session across every replica sharing the Redis
// instance. The lease is refreshed while held, so a turn longer than the TTL keeps it;
// a crashed holder frees the session once the TTL lapses.
type RedisLocker struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	retry     time.Duration
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl < 0 {
		return nil, errors.New("lock ttl must be >= 0")
	}
	if ttl == 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{
		client:    client,
		keyPrefix: defaultLockKeyPrefix,
		ttl:       ttl,
		retry:     defaultLockRetry,
	}, nil
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lease, err := redislock.Acquire(ctx, r.client, r.keyPrefix+key, r.ttl, r.retry)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("lock session %s: %w", key, err)
	}

	stop := make(chan struct{})
	go lease.KeepAlive(stop, r.ttl/3)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := lease.Release(releaseCtx); err != nil {
				log.Warn().Err(err).Str("session_id", key).Msg("release session lock")
			}
		})
	}, nil
}
