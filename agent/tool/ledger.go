package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
	"github.com/tanpawarit/chative-bank-onboarding/pkg/redislock"
)

// Ledger records successful account openings by registration id.
type Ledger interface {
	Get(ctx context.Context, uscc string) (contractx.AccountOpenResult, bool, error)
	Put(ctx context.Context, uscc string, res contractx.AccountOpenResult) error
}

// Claimer is a Ledger that can reserve a registration id while an opening is in flight,
// so that replicas sharing the ledger do not call the gateway twice. Claim blocks until
// the id is free or ctx is done.
type Claimer interface {
	Claim(ctx context.Context, uscc string) (release func(), err error)
}

type MemoryLedger struct {
	mu      sync.RWMutex
	results map[string]contractx.AccountOpenResult
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{results: make(map[string]contractx.AccountOpenResult)}
}

func (l *MemoryLedger) Get(_ context.Context, uscc string) (contractx.AccountOpenResult, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res, ok := l.results[uscc]
	return res, ok, nil
}

func (l *MemoryLedger) Put(_ context.Context, uscc string, res contractx.AccountOpenResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results[uscc] = res
	return nil
}

type RedisConfig struct {
	Addr     string        `envconfig:"ADDR" split_words:"true"`
	Password string        `envconfig:"PASSWORD" split_words:"true"`
	DB       int           `envconfig:"DB" split_words:"true" default:"0"`
	TTL      time.Duration `envconfig:"TTL" split_words:"true" default:"0"`
	ClaimTTL time.Duration `envconfig:"CLAIM_TTL" split_words:"true" default:"2m"`
}

const (
	defaultLedgerKeyPrefix = "bank:account:"
	defaultClaimTTL        = 2 * time.Minute
	claimRetry             = 50 * time.Millisecond
)

// RedisLedger shares the opening record across service replicas and claims a
// registration id for the duration of its gateway call.
type RedisLedger struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	claimTTL  time.Duration
}

var _ Claimer = (*RedisLedger)(nil)

type LedgerOption func(*RedisLedger)

// WithClaimTTL bounds how long a crashed replica can block an id. It must exceed the
// tool timeout.
func WithClaimTTL(d time.Duration) LedgerOption {
	return func(l *RedisLedger) {
		if d > 0 {
			l.claimTTL = d
		}
	}
}

func NewRedisLedger(client redis.UniversalClient, ttl time.Duration, opts ...LedgerOption) (*RedisLedger, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	l := &RedisLedger{
		client:    client,
		keyPrefix: defaultLedgerKeyPrefix,
		ttl:       ttl,
		claimTTL:  defaultClaimTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

func (l *RedisLedger) key(uscc string) string {
	return l.keyPrefix + contractx.NormalizeRegistrationID(uscc)
}

func (l *RedisLedger) Claim(ctx context.Context, uscc string) (func(), error) {
	lease, err := redislock.Acquire(ctx, l.client, l.key(uscc)+":pending", l.claimTTL, claimRetry)
	if err != nil {
		return nil, err
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			log.Warn().Err(err).Str("key", lease.Key()).Msg("release opening claim")
		}
	}, nil
}

func (l *RedisLedger) Get(ctx context.Context, uscc string) (contractx.AccountOpenResult, bool, error) {
	raw, err := l.client.Get(ctx, l.key(uscc)).Bytes()
	if errors.Is(err, redis.Nil) {
		return contractx.AccountOpenResult{}, false, nil
	}
	if err != nil {
		return contractx.AccountOpenResult{}, false, fmt.Errorf("redis get: %w", err)
	}

	var res contractx.AccountOpenResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return contractx.AccountOpenResult{}, false, fmt.Errorf("decode ledger entry: %w", err)
	}
	return res, true, nil
}

func (l *RedisLedger) Put(ctx context.Context, uscc string, res contractx.AccountOpenResult) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode ledger entry: %w", err)
	}
	// SETNX keeps the first recorded opening if two replicas race.
	if err := l.client.SetNX(ctx, l.key(uscc), raw, l.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	return nil
}
