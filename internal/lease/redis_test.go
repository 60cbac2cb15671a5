package lease

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRegistry(client, "lease:"), mr
}

func TestAcquireIsExclusiveUntilRelease(t *testing.T) {
	reg, mr := newRegistry(t)
	ctx := context.Background()

	ok, err := reg.Acquire(ctx, "task/a", "w1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lease:task/a"))

	ok, err = reg.Acquire(ctx, "task/a", "w1", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, reg.Release(ctx, "task/a", "w1"))
	ok, err = reg.Acquire(ctx, "task/a", "w1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquireAfterTTLExpiry(t *testing.T) {
	reg, mr := newRegistry(t)
	ctx := context.Background()

	ok, err := reg.Acquire(ctx, "task/a", "w1", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(11 * time.Second)

	ok, err = reg.Acquire(ctx, "task/a", "w1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquireManyReportsHeldKeys(t *testing.T) {
	reg, mr := newRegistry(t)
	ctx := context.Background()

	ok, err := reg.Acquire(ctx, "b", "w1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	failed, err := reg.AcquireMany(ctx, []string{"a", "b", "c"}, "w2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, failed)

	require.NoError(t, reg.ReleaseMany(ctx, []string{"a", "b", "c"}, "w2"))
	assert.True(t, mr.Exists("lease:b"), "b belongs to w1")
	failed, err = reg.AcquireMany(ctx, []string{"a", "b", "c"}, "w3", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, failed)
}

func TestConcurrentAcquireHasOneWinner(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := reg.Acquire(ctx, "task/race", fmt.Sprintf("w%d", i), time.Minute)
			if err == nil && ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestReleaseAfterTakeoverKeepsNewHolder(t *testing.T) {
	reg, mr := newRegistry(t)
	ctx := context.Background()

	ok, err := reg.Acquire(ctx, "task/a", "w1", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// w1 超时，w2 接手
	mr.FastForward(11 * time.Second)
	ok, err = reg.Acquire(ctx, "task/a", "w2", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, reg.Release(ctx, "task/a", "w1"))
	require.NoError(t, reg.ReleaseMany(ctx, []string{"task/a"}, "w1"))
	got, err := mr.Get("lease:task/a")
	require.NoError(t, err)
	assert.Equal(t, "w2", got)

	ok, err = reg.Acquire(ctx, "task/a", "w3", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, reg.Release(ctx, "task/a", "w2"))
	assert.False(t, mr.Exists("lease:task/a"))
}
