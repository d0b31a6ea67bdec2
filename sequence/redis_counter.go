package sequence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisCounter is a Counter persisted in Redis with INCR. Because INCR is
// atomic on the server, numbering stays gapless across concurrent callers and
// across process restarts.
type RedisCounter struct {
	client *redis.Client
	key    string
}

// NewRedisCounter creates a counter stored under key.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	counter := NewRedisCounter(client, "sensorgate:seq:0")
func NewRedisCounter(client *redis.Client, key string) *RedisCounter {
	return &RedisCounter{
		client: client,
		key:    key,
	}
}

// Key returns the Redis key holding the counter.
func (c *RedisCounter) Key() string {
	return c.key
}

// Next implements Counter.
func (c *RedisCounter) Next(ctx context.Context) (uint64, error) {
	v, err := c.client.Incr(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", c.key, err)
	}

	if v < 1 {
		return 0, fmt.Errorf("redis counter %s holds invalid value %d", c.key, v)
	}

	return uint64(v), nil
}

// Ping verifies that the Redis server is reachable.
//
// Returns:
//   - An error if the server does not answer
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	return nil
}
