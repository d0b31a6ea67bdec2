package sequence

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return mr, client
}

func TestRedisCounter_Next(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	require.NoError(t, Ping(ctx, client))

	t.Run("numbers from 1", func(t *testing.T) {
		c := NewRedisCounter(client, "sensorgate:seq:0")
		for want := uint64(1); want <= 3; want++ {
			got, err := c.Next(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}

		stored, err := mr.Get("sensorgate:seq:0")
		require.NoError(t, err)
		assert.Equal(t, "3", stored)
	})

	t.Run("new counter on the same key continues", func(t *testing.T) {
		c := NewRedisCounter(client, "sensorgate:seq:0")
		got, err := c.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), got)
	})

	t.Run("keys are independent", func(t *testing.T) {
		c := NewRedisCounter(client, "sensorgate:seq:1")
		got, err := c.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), got)
	})

	t.Run("non-positive stored value is rejected", func(t *testing.T) {
		require.NoError(t, mr.Set("sensorgate:seq:neg", "-5"))
		c := NewRedisCounter(client, "sensorgate:seq:neg")
		_, err := c.Next(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid value -4")
	})

	t.Run("non-integer stored value is an error", func(t *testing.T) {
		require.NoError(t, mr.Set("sensorgate:seq:text", "abc"))
		c := NewRedisCounter(client, "sensorgate:seq:text")
		_, err := c.Next(ctx)
		assert.Error(t, err)
	})
}

func TestRedisCounter_concurrent(t *testing.T) {
	_, client := newTestRedis(t)
	c := NewRedisCounter(client, "sensorgate:seq:0")

	const n = 100
	ids := make([]uint64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			ids[idx], _ = c.Next(context.Background())
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		assert.GreaterOrEqual(t, id, uint64(1))
		assert.LessOrEqual(t, id, uint64(n))
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
