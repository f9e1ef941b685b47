package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRedisLimiter(t *testing.T) Limiter {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisLimiter(client, testLogger())
}

func TestRedisLimiter_CountsDownRemaining(t *testing.T) {
	limiter := newRedisLimiter(t)
	ctx := context.Background()

	for want := 2; want >= 0; want-- {
		result, err := limiter.Check(ctx, "transfer:42", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, want, result.Remaining)
	}
}

func TestRedisLimiter_DeniesOverLimit(t *testing.T) {
	limiter := newRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "transfer:42", 2, time.Minute)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	result, err := limiter.Check(ctx, "transfer:42", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Zero(t, result.Remaining)
	assert.False(t, result.ResetAt.IsZero())
}

func TestRedisLimiter_WindowSlides(t *testing.T) {
	limiter := newRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "transfer:42", 2, 500*time.Millisecond)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	time.Sleep(600 * time.Millisecond)

	result, err := limiter.Check(ctx, "transfer:42", 2, 500*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "hits outside the window must not count")
}

func TestRedisLimiter_KeysAreIndependent(t *testing.T) {
	limiter := newRedisLimiter(t)
	ctx := context.Background()

	result, err := limiter.Check(ctx, "transfer:42", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.Check(ctx, "transfer:42", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, result.Allowed, "user 42 exhausted their limit")

	result, err = limiter.Check(ctx, "transfer:43", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "another user's window is untouched")
}

func TestRedisLimiter_RejectsMissingClient(t *testing.T) {
	limiter := NewRedisLimiter(nil, testLogger())

	_, err := limiter.Check(context.Background(), "transfer:42", 1, time.Minute)
	assert.Error(t, err)
}

func TestRedisLimiter_DeniesNonPositiveLimit(t *testing.T) {
	limiter := newRedisLimiter(t)

	result, err := limiter.Check(context.Background(), "transfer:42", 0, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}
