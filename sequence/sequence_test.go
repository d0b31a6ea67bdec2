package sequence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemoryCounter(t *testing.T) {
	t.Run("first Next returns 1 when starting at 0", func(t *testing.T) {
		c := NewMemoryCounter(0)
		require.NotNil(t, c)
		got, err := c.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(1), got)
	})

	t.Run("first Next returns startValue+1", func(t *testing.T) {
		c := NewMemoryCounter(41)
		got, err := c.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(42), got)
	})

	t.Run("Current reports start value before use", func(t *testing.T) {
		c := NewMemoryCounter(7)
		assert.Equal(t, uint64(7), c.Current())
		c.Id()
		assert.Equal(t, uint64(8), c.Current())
	})
}

func TestMemoryCounter_sequential(t *testing.T) {
	c := NewMemoryCounter(0)
	for want := uint64(1); want <= 10; want++ {
		got, err := c.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestMemoryCounter_concurrent(t *testing.T) {
	c := NewMemoryCounter(0)
	const n = 500
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

func TestMemoryCounter_independent(t *testing.T) {
	c1 := NewMemoryCounter(0)
	c2 := NewMemoryCounter(0)

	assert.Equal(t, uint64(1), c1.Id())
	assert.Equal(t, uint64(1), c2.Id())
	assert.Equal(t, uint64(2), c1.Id())
}

func TestRedisCounter_unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() {
		_ = client.Close()
	}()

	c := NewRedisCounter(client, "sensorgate:seq:0")
	assert.Equal(t, "sensorgate:seq:0", c.Key())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := c.Next(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sensorgate:seq:0")

	assert.Error(t, Ping(ctx, client))
}
