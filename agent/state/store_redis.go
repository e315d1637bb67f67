package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultStoreKeyPrefix = "bank:session:"

type RedisStoreConfig struct {
	Addr      string        `envconfig:"ADDR" default:"localhost:6379"`
	Password  string        `envconfig:"PASSWORD"`
	DB        int           `envconfig:"DB" default:"0"`
	KeyPrefix string        `envconfig:"KEY_PREFIX" split_words:"true" default:"bank:session:"`
	TTL       time.Duration `envconfig:"TTL" default:"24h"`
	LockTTL   time.Duration `envconfig:"LOCK_TTL" split_words:"true" default:"2m"`
}

// RedisStore persists sessions as JSON strings with a sliding TTL.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

func NewRedisStore(client redis.UniversalClient, cfg RedisStoreConfig) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.TTL < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = defaultStoreKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: prefix, ttl: cfg.TTL}, nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	key, err := s.redisKey(sessionID)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var st Session
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("unmarshal session state: %w", err)
	}
	if st.Stage.index() < 0 && st.Stage != StageFailed {
		return nil, fmt.Errorf("invalid session state loaded from store: stage %q", st.Stage)
	}
	return &st, nil
}

func (s *RedisStore) Save(ctx context.Context, st *Session) error {
	if st == nil {
		return ErrNilSessionState
	}
	key, err := s.redisKey(st.SessionID)
	if err != nil {
		return err
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	key, err := s.redisKey(sessionID)
	if err != nil {
		return err
	}
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) redisKey(sessionID string) (string, error) {
	id, err := sessionKey(sessionID)
	if err != nil {
		return "", err
	}
	return s.keyPrefix + id, nil
}
