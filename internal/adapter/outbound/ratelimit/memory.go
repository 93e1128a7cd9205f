// Package ratelimit implements ratelimit.Limiter over in-memory and Redis
// stores, both using a fixed-window algorithm: the counter resets hard at
// the window boundary rather than decaying smoothly like a token-bucket or
// GCRA limiter would.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/meridianmesh/edge-gateway/internal/domain/ratelimit"
)

// window is one fixed-window bucket: a count and the instant it resets.
type window struct {
	count     int
	resetAt   time.Time
	updatedAt time.Time
}

// MemoryLimiter implements ratelimit.Limiter with an in-memory fixed-window
// counter per key. Safe for concurrent use. Suitable for a single-process
// deployment; distributed deployments should use RedisLimiter instead.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window

	stopChan        chan struct{}
	wg              sync.WaitGroup
	once            sync.Once
	cleanupInterval time.Duration
	staleAfter      time.Duration
}

// NewMemoryLimiter builds a MemoryLimiter with default housekeeping settings.
func NewMemoryLimiter() *MemoryLimiter {
	return NewMemoryLimiterWithConfig(5*time.Minute, 1*time.Hour)
}

// NewMemoryLimiterWithConfig builds a MemoryLimiter with explicit cleanup
// cadence and stale-key eviction age.
func NewMemoryLimiterWithConfig(cleanupInterval, staleAfter time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		windows:         make(map[string]*window),
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
		staleAfter:      staleAfter,
	}
}

// Allow implements a hard fixed-window reset: once the window for key
// expires, the counter resets to zero rather than decaying smoothly.
func (l *MemoryLimiter) Allow(ctx context.Context, key string, config ratelimit.Config) (ratelimit.Result, error) {
	if config.Points <= 0 || config.Window <= 0 {
		// Fail open: a misconfigured limit must never block traffic.
		return ratelimit.Result{Allowed: true, Remaining: 0}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{count: 0, resetAt: now.Add(config.Window)}
		l.windows[key] = w
	}
	w.updatedAt = now

	if w.count >= config.Points {
		return ratelimit.Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: w.resetAt.Sub(now),
		}, nil
	}

	w.count++
	return ratelimit.Result{
		Allowed:   true,
		Remaining: config.Points - w.count,
	}, nil
}

// StartCleanup launches the background goroutine that evicts windows idle
// longer than staleAfter, bounding memory growth under a large, churning key
// space. Stops on ctx cancellation or Stop().
func (l *MemoryLimiter) StartCleanup(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stopChan:
				return
			case <-ticker.C:
				l.cleanup()
			}
		}
	}()
}

func (l *MemoryLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.staleAfter)
	cleaned := 0
	for key, w := range l.windows {
		if w.updatedAt.Before(cutoff) {
			delete(l.windows, key)
			cleaned++
		}
	}
	if cleaned > 0 {
		slog.Debug("rate limiter cleanup completed", "cleaned_keys", cleaned, "remaining_keys", len(l.windows))
	}
}

// Stop halts the cleanup goroutine and waits for it to exit. Safe to call
// multiple times.
func (l *MemoryLimiter) Stop() {
	l.once.Do(func() {
		close(l.stopChan)
	})
	l.wg.Wait()
}

// Size returns the number of tracked keys, for tests and monitoring.
func (l *MemoryLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

var _ ratelimit.Limiter = (*MemoryLimiter)(nil)
