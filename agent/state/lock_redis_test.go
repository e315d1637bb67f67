package state

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLockers(t *testing.T, n int) ([]*RedisLocker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	lockers := make([]*RedisLocker, n)
	for i := range lockers {
		// One client per locker, as separate replicas would have.
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		l, err := NewRedisLocker(client, time.Minute)
		if err != nil {
			t.Fatalf("NewRedisLocker() error = %v", err)
		}
		l.retry = 2 * time.Millisecond
		lockers[i] = l
	}
	return lockers, mr
}

func TestRedisLockerSerializesAcrossReplicas(t *testing.T) {
	t.Parallel()

	lockers, mr := newRedisLockers(t, 2)
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(l *RedisLocker) {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "s-1")
			if err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			n := inside.Add(1)
			for {
				cur := maxInside.Load()
				if n <= cur || maxInside.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			unlock()
		}(lockers[i%2])
	}
	wg.Wait()

	if got := maxInside.Load(); got != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", got)
	}
	if mr.Exists("bank:lock:s-1") {
		t.Fatalf("lock key left behind after all unlocks")
	}
}

func TestRedisLockerHonoursContext(t *testing.T) {
	t.Parallel()

	lockers, mr := newRedisLockers(t, 2)
	unlock, err := lockers[0].Lock(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if ttl := mr.TTL("bank:lock:s-1"); ttl != time.Minute {
		t.Fatalf("lock ttl = %v, want 1m", ttl)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := lockers[1].Lock(ctx, "s-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Lock() on held key error = %v, want DeadlineExceeded", err)
	}

	unlockB, err := lockers[1].Lock(context.Background(), "s-2")
	if err != nil {
		t.Fatalf("Lock(s-2) blocked by s-1: %v", err)
	}
	unlockB()

	unlock()
	unlock()
	if mr.Exists("bank:lock:s-1") {
		t.Fatalf("lock key left behind after unlock")
	}
}

func TestRedisLockerExpiredHolderFreesSession(t *testing.T) {
	t.Parallel()

	lockers, mr := newRedisLockers(t, 2)
	if _, err := lockers[0].Lock(context.Background(), "s-1"); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	// The first holder never unlocks, as if its replica died.
	mr.FastForward(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock, err := lockers[1].Lock(ctx, "s-1")
	if err != nil {
		t.Fatalf("Lock() after lease expiry error = %v", err)
	}
	unlock()
}
