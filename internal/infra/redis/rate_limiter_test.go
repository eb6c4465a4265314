package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// memStore is an in-memory RedisClient shared between limiter instances to
// simulate a fleet counting against one Redis. Flip unreachable to make
// every call fail.
type memStore struct {
	mu          sync.Mutex
	data        map[string]string
	expirations map[string]time.Duration
	unreachable bool
}

func newMemStore() *memStore {
	return &memStore{
		data:        make(map[string]string),
		expirations: make(map[string]time.Duration),
	}
}

var errStoreDown = errors.New("connection refused")

func (s *memStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unreachable {
		return errStoreDown
	}
	return nil
}

func (s *memStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unreachable {
		return errStoreDown
	}
	s.data[key] = fmt.Sprint(value)
	return nil
}

func (s *memStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unreachable {
		return "", errStoreDown
	}
	v, ok := s.data[key]
	if !ok {
		return "", ErrNil
	}
	return v, nil
}

func (s *memStore) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unreachable {
		return 0, errStoreDown
	}
	var n int64
	fmt.Sscan(s.data[key], &n)
	n++
	s.data[key] = fmt.Sprint(n)
	return n, nil
}

func (s *memStore) Expire(ctx context.Context, key string, expiration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unreachable {
		return errStoreDown
	}
	s.expirations[key] = expiration
	return nil
}

func (s *memStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unreachable {
		return 0, errStoreDown
	}
	return s.expirations[key], nil
}

func (s *memStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unreachable {
		return errStoreDown
	}
	for _, k := range keys {
		delete(s.data, k)
		delete(s.expirations, k)
	}
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) setUnreachable(down bool) {
	s.mu.Lock()
	s.unreachable = down
	s.mu.Unlock()
}

func newTestLimiter(store RedisClient, workerID string, limit int) *FixedWindowLimiter {
	log := zerolog.Nop()
	l := NewFixedWindowLimiter(store, workerID, limit, time.Minute, &log)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }
	return l
}

// advance moves the limiter's clock, e.g. past the window boundary.
func advance(l *FixedWindowLimiter, d time.Duration) {
	current := l.now()
	l.now = func() time.Time { return current.Add(d) }
}

func TestWindowCounting(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	l := newTestLimiter(store, "w1", 5)

	if check := l.CanProcess(ctx); !check.Allowed || check.Remaining != 5 {
		t.Fatalf("fresh window: %+v, want allowed with remaining 5", check)
	}

	for i := 0; i < 3; i++ {
		l.Consume(ctx)
	}
	check := l.CanProcess(ctx)
	if !check.Allowed {
		t.Fatal("3 of 5 consumed, want allowed")
	}
	if check.Remaining != 2 || check.Limit != 5 {
		t.Errorf("check = %+v, want remaining 2 of 5", check)
	}

	l.Consume(ctx)
	l.Consume(ctx)
	if check := l.CanProcess(ctx); check.Allowed || check.Remaining != 0 {
		t.Errorf("window full: %+v, want denied with remaining 0", check)
	}

	// A new window starts fresh.
	advance(l, time.Minute)
	if check := l.CanProcess(ctx); !check.Allowed || check.Remaining != 5 {
		t.Errorf("after window rollover: %+v, want allowed with remaining 5", check)
	}
}

func TestWindowKeyExpirySetOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	l := newTestLimiter(store, "w1", 5)

	l.Consume(ctx)
	l.Consume(ctx)

	key := l.windowKey()
	ttl, _ := store.TTL(ctx, key)
	if ttl != time.Minute+expiryBuffer {
		t.Errorf("window key ttl = %v, want %v", ttl, time.Minute+expiryBuffer)
	}
}

func TestLimitOverridePriority(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	l := newTestLimiter(store, "w1", 5)

	if got := l.CanProcess(ctx).Limit; got != 5 {
		t.Errorf("no overrides: limit = %d, want static 5", got)
	}

	_ = store.Set(ctx, fleetOverrideKey, "20", 0)
	if got := l.CanProcess(ctx).Limit; got != 20 {
		t.Errorf("fleet override: limit = %d, want 20", got)
	}

	_ = store.Set(ctx, WorkerOverrideKey("w1"), "2", 0)
	if got := l.CanProcess(ctx).Limit; got != 2 {
		t.Errorf("worker override wins: limit = %d, want 2", got)
	}

	// Garbage overrides are ignored, not treated as zero.
	_ = store.Set(ctx, WorkerOverrideKey("w1"), "not-a-number", 0)
	if got := l.CanProcess(ctx).Limit; got != 20 {
		t.Errorf("bad worker override falls through to fleet: limit = %d, want 20", got)
	}
}

// Two workers sharing the store count against the same window, so the cap
// holds fleet-wide rather than per process.
func TestFleetWideCap(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	a := newTestLimiter(store, "w-a", 2)
	b := newTestLimiter(store, "w-b", 2)

	allowed := 0
	limiters := []*FixedWindowLimiter{a, b, a, b, a}
	for _, l := range limiters {
		if l.CanProcess(ctx).Allowed {
			allowed++
			l.Consume(ctx)
		}
	}
	if allowed != 2 {
		t.Fatalf("fleet allowed %d jobs in the window, want 2", allowed)
	}
	if check := b.CanProcess(ctx); check.Allowed {
		t.Errorf("second worker allowed past fleet cap: %+v", check)
	}
}

func TestDegradedFallsBackToLocalCounting(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	l := newTestLimiter(store, "w1", 2)

	l.Consume(ctx)
	store.setUnreachable(true)

	// The shared count is invisible now, but the worker keeps going on its
	// own window counter instead of stalling.
	check := l.CanProcess(ctx)
	if !check.Allowed {
		t.Fatalf("degraded first check: %+v, want allowed", check)
	}
	l.Consume(ctx)
	l.Consume(ctx)
	if check := l.CanProcess(ctx); check.Allowed {
		t.Errorf("local window full: %+v, want denied", check)
	}

	// Local counter resets on window rollover too.
	advance(l, time.Minute)
	if check := l.CanProcess(ctx); !check.Allowed {
		t.Errorf("degraded after rollover: %+v, want allowed", check)
	}

	// Recovery resumes shared counting where the store left off.
	store.setUnreachable(false)
	advance(l, time.Minute)
	l.Consume(ctx)
	if check := l.CanProcess(ctx); check.Remaining != 1 {
		t.Errorf("after recovery: %+v, want remaining 1 of 2", check)
	}
}
