// Package redislock is a single-instance Redis lease: SET NX PX with a random token,
// released and refreshed only by the holder of that token.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrNotAcquired is returned when the key is held by someone else.
var ErrNotAcquired = errors.New("redislock: not acquired")

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

type Lock struct {
	client redis.UniversalClient
	key    string
	token  string
	ttl    time.Duration
}

// TryAcquire takes key for ttl, or returns ErrNotAcquired without waiting.
func TryAcquire(ctx context.Context, client redis.UniversalClient, key string, ttl time.Duration) (*Lock, error) {
	if client == nil {
		return nil, errors.New("redislock: client is required")
	}
	if ttl <= 0 {
		return nil, errors.New("redislock: ttl must be > 0")
	}
	token := uuid.NewString()
	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redislock: setnx %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Lock{client: client, key: key, token: token, ttl: ttl}, nil
}

// Acquire polls every retry until key is taken or ctx is done.
func Acquire(ctx context.Context, client redis.UniversalClient, key string, ttl, retry time.Duration) (*Lock, error) {
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	ticker := time.NewTicker(retry)
	defer ticker.Stop()

	for {
		l, err := TryAcquire(ctx, client, key, ttl)
		if !errors.Is(err, ErrNotAcquired) {
			return l, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Lock) Key() string { return l.key }

// Release deletes the key if this lock still owns it. Releasing an expired or stolen
// lock is ErrNotAcquired.
func (l *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("redislock: release %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrNotAcquired
	}
	return nil
}

// Refresh extends the lease back to the full ttl.
func (l *Lock) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redislock: refresh %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrNotAcquired
	}
	return nil
}

// KeepAlive refreshes the lease every interval until stop is closed or the lease is lost.
func (l *Lock) KeepAlive(stop <-chan struct{}, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), every)
			err := l.Refresh(ctx)
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("key", l.key).Msg("lock lease lost")
				return
			}
		}
	}
}
