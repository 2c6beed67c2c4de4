package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentra-sec/sentra/internal/config"
	"github.com/sentra-sec/sentra/internal/security/ratelimit"
	"github.com/sentra-sec/sentra/pkg/constants"
)

func newMemoryLimiter(now *time.Time) *ratelimit.Limiter {
	clock := func() time.Time { return *now }
	return ratelimit.NewLimiter(ratelimit.NewMemoryStoreWithClock(clock), nil,
		ratelimit.WithClock(clock))
}

func TestLimiter_SixthCallInWindowDenied(t *testing.T) {
	now := time.Now()
	limiter := newMemoryLimiter(&now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := limiter.CheckLimit(ctx, "client-1", 5, time.Second)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.CheckLimit(ctx, "client-1", 5, time.Second)
	require.NoError(t, err)
	assert.False(t, allowed, "6th request in the window must be denied")

	// A different key is unaffected.
	allowed, err = limiter.CheckLimit(ctx, "client-2", 5, time.Second)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiter_WindowResetsAfterBlockLapses(t *testing.T) {
	now := time.Now()
	limiter := newMemoryLimiter(&now)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		limiter.CheckLimit(ctx, "client-1", 5, time.Second)
	}

	// Still inside the default block duration: denied without counting.
	now = now.Add(2 * time.Second)
	allowed, err := limiter.CheckLimit(ctx, "client-1", 5, time.Second)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Window and block both elapsed: fresh window, count restarts at 1.
	now = now.Add(constants.DefaultRateLimitBlock)
	allowed, err = limiter.CheckLimit(ctx, "client-1", 5, time.Second)
	require.NoError(t, err)
	assert.True(t, allowed)

	info, err := limiter.Info(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 1, info.CurrentCount)
	assert.False(t, info.Blocked)
}

func TestLimiter_InfoReflectsState(t *testing.T) {
	now := time.Now()
	limiter := newMemoryLimiter(&now)
	ctx := context.Background()

	info, err := limiter.Info(ctx, "untracked")
	require.NoError(t, err)
	assert.Nil(t, info)

	for i := 0; i < 3; i++ {
		limiter.CheckLimit(ctx, "client-1", 5, time.Minute)
	}

	info, err = limiter.Info(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "client-1", info.Key)
	assert.Equal(t, 5, info.Limit)
	assert.Equal(t, 3, info.CurrentCount)
	assert.Equal(t, 2, info.Remaining())
	assert.False(t, info.Blocked)
	assert.Greater(t, info.RetryAfter(now), time.Duration(0))
}

func TestLimiter_BlockedKeyReportsExpiry(t *testing.T) {
	now := time.Now()
	limiter := newMemoryLimiter(&now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		limiter.CheckLimit(ctx, "client-1", 2, time.Second)
	}

	info, err := limiter.Info(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.True(t, info.Blocked)
	assert.True(t, info.BlockExpiry.After(now))
}

func TestLimiter_ClassesAreIndependent(t *testing.T) {
	now := time.Now()
	rules := map[string]config.RateLimitRule{
		string(constants.ClassAuthentication): {MaxRequests: 2, Window: time.Minute, BlockDuration: time.Minute},
		string(constants.ClassAPI):            {MaxRequests: 100, Window: time.Minute, BlockDuration: time.Minute},
	}
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), rules,
		ratelimit.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.CheckClass(ctx, constants.ClassAuthentication, "alice")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := limiter.CheckClass(ctx, constants.ClassAuthentication, "alice")
	require.NoError(t, err)
	assert.False(t, allowed, "authentication class cap reached")

	// The same identifier under another class is untouched.
	allowed, err = limiter.CheckClass(ctx, constants.ClassAPI, "alice")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiter_RejectsInvalidWindow(t *testing.T) {
	now := time.Now()
	limiter := newMemoryLimiter(&now)

	_, err := limiter.CheckLimit(context.Background(), "k", 0, time.Second)
	assert.Error(t, err)

	_, err = limiter.CheckLimit(context.Background(), "k", 5, 0)
	assert.Error(t, err)
}

func TestLimiter_SweepAndReset(t *testing.T) {
	now := time.Now()
	limiter := newMemoryLimiter(&now)
	ctx := context.Background()

	limiter.CheckLimit(ctx, "client-1", 5, 10*time.Millisecond)
	_, err := limiter.Sweep(ctx)
	require.NoError(t, err)

	require.NoError(t, limiter.Reset(ctx))
	info, err := limiter.Info(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestLimiter_RedisStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	limiter := ratelimit.NewLimiter(ratelimit.NewRedisStore(client), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := limiter.CheckLimit(ctx, "client-1", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.CheckLimit(ctx, "client-1", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// The block outlives the counter window in Redis as well.
	expiry, blocked, err := ratelimit.NewRedisStore(client).GetBlock(ctx, "client-1")
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.True(t, expiry.After(time.Now()))

	require.NoError(t, limiter.Reset(ctx))
	allowed, err = limiter.CheckLimit(ctx, "client-1", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}
