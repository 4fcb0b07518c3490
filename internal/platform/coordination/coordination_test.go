package coordination

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStoreSetIfAbsentRespectsExpiry(t *testing.T) {
	clock := newManualClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()

	ok, err := store.SetIfAbsent(ctx, "k", "a", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.SetIfAbsent(ctx, "k", "b", time.Second)
	require.NoError(t, err)
	require.False(t, ok)

	clock.Advance(time.Second)
	ok, err = store.SetIfAbsent(ctx, "k", "b", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	value, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "b", value)
}

func TestMemoryStoreCompareOperations(t *testing.T) {
	clock := newManualClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()

	_, err := store.SetIfAbsent(ctx, "rec", "held", time.Minute)
	require.NoError(t, err)

	swapped, err := store.CompareAndSwap(ctx, "rec", "other", "sent")
	require.NoError(t, err)
	require.False(t, swapped)

	swapped, err = store.CompareAndSwap(ctx, "rec", "held", "sent")
	require.NoError(t, err)
	require.True(t, swapped)

	ttl, err := store.TTL(ctx, "rec")
	require.NoError(t, err)
	require.Equal(t, time.Minute, ttl)

	deleted, err := store.CompareAndDelete(ctx, "rec", "held")
	require.NoError(t, err)
	require.False(t, deleted)

	deleted, err = store.CompareAndDelete(ctx, "rec", "sent")
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = store.TTL(ctx, "rec")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestLockManagerSingleHolder(t *testing.T) {
	store := NewMemoryStore(newManualClock())
	locks := NewLockManager(store)
	ctx := context.Background()

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := locks.Acquire(ctx, "settle:0xabc", time.Minute)
			if err == nil && ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), granted.Load())
}

func TestLockManagerReleaseRequiresHolderToken(t *testing.T) {
	clock := newManualClock()
	locks := NewLockManager(NewMemoryStore(clock))
	ctx := context.Background()

	token, ok, err := locks.Acquire(ctx, "res", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	released, err := locks.Release(ctx, "res", "not-the-holder")
	require.NoError(t, err)
	require.False(t, released)

	_, ok, err = locks.Acquire(ctx, "res", 10*time.Second)
	require.NoError(t, err)
	require.False(t, ok)

	// after expiry a new holder takes over and the stale token cannot free it
	clock.Advance(10 * time.Second)
	second, ok, err := locks.Acquire(ctx, "res", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	released, err = locks.Release(ctx, "res", token)
	require.NoError(t, err)
	require.False(t, released)

	holder, found, err := locks.Holder(ctx, "res")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, second, holder)

	released, err = locks.Release(ctx, "res", second)
	require.NoError(t, err)
	require.True(t, released)
}

func TestLockManagerRejectsEmptyKey(t *testing.T) {
	locks := NewLockManager(NewMemoryStore(nil))
	_, _, err := locks.Acquire(context.Background(), "  ", time.Second)
	require.ErrorIs(t, err, ErrInvalidLockKey)
}

func TestFixedWindowLimiter(t *testing.T) {
	clock := newManualClock()
	limiter := NewFixedWindowLimiter(NewMemoryStore(clock), "onboarding_wallet", 3, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		decision, err := limiter.Allow(ctx, "0xAbC")
		require.NoError(t, err)
		require.True(t, decision.Allowed, "request %d", i)
		require.Equal(t, int64(i), decision.Count)
	}

	clock.Advance(20 * time.Second)
	decision, err := limiter.Allow(ctx, "0xabc")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, 40*time.Second, decision.RetryAfter)

	other, err := limiter.Allow(ctx, "0xdef")
	require.NoError(t, err)
	require.True(t, other.Allowed)

	clock.Advance(40 * time.Second)
	decision, err = limiter.Allow(ctx, "0xabc")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, int64(1), decision.Count)
}

func TestFixedWindowLimiterDisabled(t *testing.T) {
	limiter := NewFixedWindowLimiter(NewMemoryStore(nil), "claim", 0, time.Minute)
	for i := 0; i < 100; i++ {
		decision, err := limiter.Allow(context.Background(), "w")
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}
}

func TestFlushFreesLocks(t *testing.T) {
	store := NewMemoryStore(newManualClock())
	locks := NewLockManager(store)
	ctx := context.Background()

	_, ok, err := locks.Acquire(ctx, "res", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	store.Flush()

	_, ok, err = locks.Acquire(ctx, "res", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisStoreIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	defer client.Close()

	store := NewRedisStore(client, "claimguard-test-"+time.Now().UTC().Format("150405.000000000"))

	ok, err := store.SetIfAbsent(ctx, "k", "a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.SetIfAbsent(ctx, "k", "b", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	swapped, err := store.CompareAndSwap(ctx, "k", "a", "c")
	require.NoError(t, err)
	require.True(t, swapped)

	ttl, err := store.TTL(ctx, "k")
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	deleted, err := store.CompareAndDelete(ctx, "k", "c")
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = store.TTL(ctx, "k")
	require.ErrorIs(t, err, ErrKeyNotFound)

	count, err := store.Increment(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	count, err = store.Increment(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
	require.NoError(t, store.Delete(ctx, "counter"))
}
