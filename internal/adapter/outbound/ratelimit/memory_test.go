package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/meridianmesh/edge-gateway/internal/domain/ratelimit"
)

func TestMemoryLimiter_FixedWindowResetsOnBoundary(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	cfg := ratelimit.Config{Points: 2, Window: 50 * time.Millisecond}

	r1, err := limiter.Allow(ctx, "k", cfg)
	require.NoError(t, err)
	require.True(t, r1.Allowed)
	require.Equal(t, 1, r1.Remaining)

	r2, err := limiter.Allow(ctx, "k", cfg)
	require.NoError(t, err)
	require.True(t, r2.Allowed)

	r3, err := limiter.Allow(ctx, "k", cfg)
	require.NoError(t, err)
	require.False(t, r3.Allowed, "third request within the window should be denied")

	time.Sleep(60 * time.Millisecond)

	r4, err := limiter.Allow(ctx, "k", cfg)
	require.NoError(t, err)
	require.True(t, r4.Allowed, "a new window must reset the counter to zero, not decay it")
}

func TestMemoryLimiter_MisconfiguredLimitFailsOpen(t *testing.T) {
	limiter := NewMemoryLimiter()

	r, err := limiter.Allow(context.Background(), "k", ratelimit.Config{Points: 0, Window: 0})
	require.NoError(t, err)
	require.True(t, r.Allowed, "a misconfigured limit must never block traffic")
}

func TestMemoryLimiter_CleanupEvictsStaleKeys(t *testing.T) {
	limiter := NewMemoryLimiterWithConfig(20*time.Millisecond, 30*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter.StartCleanup(ctx)
	defer limiter.Stop()

	_, err := limiter.Allow(ctx, "stale-key", ratelimit.Config{Points: 5, Window: time.Second})
	require.NoError(t, err)
	require.Equal(t, 1, limiter.Size())

	time.Sleep(120 * time.Millisecond)

	require.Equal(t, 0, limiter.Size(), "idle keys older than staleAfter must be evicted")
}

func TestMemoryLimiter_NoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	limiter := NewMemoryLimiterWithConfig(10*time.Millisecond, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	limiter.StartCleanup(ctx)

	cfg := ratelimit.Config{Points: 10, Window: time.Second}
	for i := 0; i < 5; i++ {
		_, _ = limiter.Allow(ctx, "leak-test-key", cfg)
	}

	time.Sleep(30 * time.Millisecond)

	cancel()
	limiter.Stop()
}
