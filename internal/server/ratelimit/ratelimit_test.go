package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestMemoryLimiter(t *testing.T) (*MemoryLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(0)
	l.now = clock.Now
	t.Cleanup(func() { _ = l.Close() })
	return l, clock
}

func TestMemoryLimiter_AllowsUpToLimit(t *testing.T) {
	l, clock := newTestMemoryLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		info, err := l.Allow(ctx, "user-1", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, info.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5-(i+1), info.Remaining)
		clock.Advance(time.Second)
	}

	info, err := l.Allow(ctx, "user-1", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, info.Allowed)
	assert.Equal(t, 0, info.Remaining)
	// The first request was 5s ago, so it leaves the window in 55s.
	assert.Equal(t, 55*time.Second, info.RetryAfter)
}

func TestMemoryLimiter_WindowSlides(t *testing.T) {
	l, clock := newTestMemoryLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := l.Allow(ctx, "user-1", 5, time.Minute)
		require.NoError(t, err)
	}

	info, _ := l.Allow(ctx, "user-1", 5, time.Minute)
	assert.False(t, info.Allowed)

	clock.Advance(time.Minute)

	info, err := l.Allow(ctx, "user-1", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, info.Allowed)
	assert.Equal(t, 4, info.Remaining)
}

func TestMemoryLimiter_DeniedRequestsAreNotRecorded(t *testing.T) {
	l, clock := newTestMemoryLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = l.Allow(ctx, "k", 2, 10*time.Second)
	}
	for i := 0; i < 10; i++ {
		info, _ := l.Allow(ctx, "k", 2, 10*time.Second)
		assert.False(t, info.Allowed)
	}

	clock.Advance(10 * time.Second)
	info, _ := l.Allow(ctx, "k", 2, 10*time.Second)
	assert.True(t, info.Allowed)
}

func TestMemoryLimiter_IndependentKeys(t *testing.T) {
	l, _ := newTestMemoryLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = l.Allow(ctx, "user-a", 5, time.Minute)
	}
	infoA, _ := l.Allow(ctx, "user-a", 5, time.Minute)
	infoB, _ := l.Allow(ctx, "user-b", 5, time.Minute)

	assert.False(t, infoA.Allowed)
	assert.True(t, infoB.Allowed)
}

func TestMemoryLimiter_NonPositiveLimitAllows(t *testing.T) {
	l, _ := newTestMemoryLimiter(t)
	info, err := l.Allow(context.Background(), "k", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, info.Allowed)
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	l, _ := newTestMemoryLimiter(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, err := l.Allow(ctx, "shared", 5, time.Minute)
			if err == nil && info.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, allowed)
}

func TestMemoryLimiter_EvictStale(t *testing.T) {
	l, clock := newTestMemoryLimiter(t)
	ctx := context.Background()

	_, _ = l.Allow(ctx, "old", 5, time.Minute)
	clock.Advance(2 * time.Hour)
	_, _ = l.Allow(ctx, "fresh", 5, time.Minute)

	l.evictStale(time.Hour)

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.requests, "old")
	assert.Contains(t, l.requests, "fresh")
}

func TestMemoryLimiter_CloseIsIdempotent(t *testing.T) {
	l := NewMemoryLimiter(10 * time.Millisecond)
	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close())
}

func TestNoopLimiter(t *testing.T) {
	var l Limiter = NoopLimiter{}
	for i := 0; i < 100; i++ {
		info, err := l.Allow(context.Background(), "k", 1, time.Second)
		require.NoError(t, err)
		assert.True(t, info.Allowed)
	}
	assert.NoError(t, l.Close())
}

func TestTrimBefore(t *testing.T) {
	base := time.Unix(1000, 0)
	in := []time.Time{base, base.Add(time.Second), base.Add(2 * time.Second)}

	assert.Len(t, trimBefore(in, base.Add(-time.Second)), 3)
	assert.Len(t, trimBefore(in, base), 2)
	assert.Len(t, trimBefore(in, base.Add(2*time.Second)), 0)
}
