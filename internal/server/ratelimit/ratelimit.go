// Package ratelimit provides per-caller sliding-window rate limiting.
//
// MemoryLimiter keeps state in-process and only works for a single instance.
// Multi-instance deployments use RedisLimiter, which shares the window through
// a Redis sorted set. Both satisfy Limiter.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter decides whether another request for key fits in the window.
// Implementations must be safe for concurrent use. A returned error signals
// a limiter malfunction; callers fail open.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Info, error)
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always permits the request.
func (NoopLimiter) Allow(context.Context, string, int, time.Duration) (Info, error) {
	return Info{Allowed: true}, nil
}

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }

// MemoryLimiter records request timestamps per key and counts those inside
// the trailing window.
type MemoryLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	now      func() time.Time

	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
	stopOnce      sync.Once
}

// NewMemoryLimiter creates an in-memory limiter. A positive cleanupInterval
// starts a goroutine that drops keys with no recent requests; call Close to stop it.
func NewMemoryLimiter(cleanupInterval time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
	if cleanupInterval > 0 {
		l.cleanupTicker = time.NewTicker(cleanupInterval)
		l.cleanupStop = make(chan struct{})
		go l.cleanup()
	}
	return l
}

// Allow records a request for key if fewer than limit requests happened in
// the last window. Denied requests are not recorded.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Info, error) {
	if limit <= 0 {
		return Info{Allowed: true}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	history := trimBefore(l.requests[key], now.Add(-window))

	if len(history) >= limit {
		l.requests[key] = history
		reset := history[0].Add(window)
		retryAfter := reset.Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Info{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetTime:  reset,
			RetryAfter: retryAfter,
		}, nil
	}

	history = append(history, now)
	l.requests[key] = history

	return Info{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(history),
		ResetTime: history[0].Add(window),
	}, nil
}

// trimBefore drops timestamps at or before cutoff. Timestamps are kept in
// ascending order so the scan stops at the first recent one.
func trimBefore(in []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(in) && !in[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return in
	}
	out := make([]time.Time, len(in)-i)
	copy(out, in[i:])
	return out
}

// cleanup removes stale keys to prevent memory leaks.
func (l *MemoryLimiter) cleanup() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.evictStale(time.Hour)
		case <-l.cleanupStop:
			return
		}
	}
}

// evictStale removes keys whose newest request is older than maxAge.
func (l *MemoryLimiter) evictStale(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxAge)
	for key, history := range l.requests {
		if len(history) == 0 || history[len(history)-1].Before(cutoff) {
			delete(l.requests, key)
		}
	}
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (l *MemoryLimiter) Close() error {
	l.stopOnce.Do(func() {
		if l.cleanupTicker != nil {
			l.cleanupTicker.Stop()
		}
		if l.cleanupStop != nil {
			close(l.cleanupStop)
		}
	})
	return nil
}
