package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "test:pin", limit, time.Minute), mr
}

func TestLimiterBlocksAfterLimit(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		ok, err := limiter.Reserve(ctx, "acc-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := limiter.Reserve(ctx, "acc-1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = limiter.Reserve(ctx, "acc-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiterConcurrentBurstNeverExceedsLimit(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t, 3)

	const workers = 20
	var wg sync.WaitGroup
	var granted atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := limiter.Reserve(ctx, "acc-1")
			if err != nil {
				t.Errorf("reserve: %v", err)
				return
			}
			if ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(3), granted.Load())
}

func TestLimiterWindowExpires(t *testing.T) {
	ctx := context.Background()
	limiter, mr := newTestLimiter(t, 1)

	ok, err := limiter.Reserve(ctx, "acc-1")
	require.NoError(t, err)
	require.True(t, ok)
	ok, _ = limiter.Reserve(ctx, "acc-1")
	assert.False(t, ok)
	assert.True(t, mr.TTL("test:pin:acc-1") > 0)

	mr.FastForward(time.Minute + time.Second)
	ok, err = limiter.Reserve(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiterResetClearsAttempts(t *testing.T) {
	ctx := context.Background()
	limiter, mr := newTestLimiter(t, 1)

	_, err := limiter.Reserve(ctx, "Rahim@Example.com")
	require.NoError(t, err)
	require.NoError(t, limiter.Reset(ctx, "rahim@example.com"))
	assert.False(t, mr.Exists("test:pin:rahim@example.com"))
	ok, err := limiter.Reserve(ctx, "rahim@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	ctx := context.Background()
	limiter, err := NewFromURL(ctx, "", 5)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		ok, err := limiter.Reserve(ctx, "acc-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	var nilLimiter *Limiter
	ok, err := nilLimiter.Reserve(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, nilLimiter.Reset(ctx, "acc-1"))
}
