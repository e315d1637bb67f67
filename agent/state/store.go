package state

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	ErrStateNotFound   = errors.New("session state not found")
	ErrNilSessionState = errors.New("session state is nil")
	ErrInvalidSession  = errors.New("session id is empty")
)

const defaultStoreTTL = 24 * time.Hour

// Store is the persistence contract used by the orchestrator.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Session, error)
	Save(ctx context.Context, st *Session) error
	Delete(ctx context.Context, sessionID string) error
}

// StoreOption customizes MemoryStore.
type StoreOption func(*MemoryStore)

// WithTTL expires sessions idle for longer than ttl. Zero disables expiry.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *MemoryStore) {
		s.ttl = ttl
	}
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// MemoryStore keeps sessions in process memory. Loaded sessions are copies; callers
// must Save to publish changes.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(opts ...StoreOption) (*MemoryStore, error) {
	store := &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      defaultStoreTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return store, nil
}

func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	key, err := sessionKey(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	st, ok := s.sessions[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrStateNotFound
	}
	if s.expired(st) {
		s.mu.Lock()
		if cur, ok := s.sessions[key]; ok && cur == st {
			delete(s.sessions, key)
		}
		s.mu.Unlock()
		return nil, ErrStateNotFound
	}
	return st.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, st *Session) error {
	if st == nil {
		return ErrNilSessionState
	}
	key, err := sessionKey(st.SessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sessions[key] = st.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	key, err := sessionKey(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of sessions currently holding a license record.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, st := range s.sessions {
		if st.HasRecord() && !s.expired(st) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) expired(st *Session) bool {
	return s.ttl > 0 && s.now().Sub(st.UpdatedAt) > s.ttl
}

func sessionKey(sessionID string) (string, error) {
	key := strings.TrimSpace(sessionID)
	if key == "" {
		return "", ErrInvalidSession
	}
	return key, nil
}
