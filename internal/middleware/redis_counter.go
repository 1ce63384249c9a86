package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
)

const redisCounterTimeout = 100 * time.Millisecond

// RedisCounter is an httprate.LimitCounter backed by Redis. When Redis is
// unreachable it counts in process memory so requests are still limited.
type RedisCounter struct {
	client       *redis.Client
	prefix       string
	windowLength time.Duration
	fallback     httprate.LimitCounter
	logger       *slog.Logger
}

var _ httprate.LimitCounter = (*RedisCounter)(nil)

func NewRedisCounter(client *redis.Client, prefix string, logger *slog.Logger) *RedisCounter {
	return &RedisCounter{client: client, prefix: prefix, logger: logger}
}

func (c *RedisCounter) Config(requestLimit int, windowLength time.Duration) {
	c.windowLength = windowLength
	c.fallback = httprate.NewLocalLimitCounter(windowLength)
	c.fallback.Config(requestLimit, windowLength)
}

func (c *RedisCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

func (c *RedisCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisCounterTimeout)
	defer cancel()

	k := c.key(key, currentWindow)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.IncrBy(ctx, k, int64(amount))
		// Keep the previous window around for the sliding estimate
		pipe.Expire(ctx, k, 3*c.windowLength)
		return nil
	})
	if err != nil {
		c.logger.Warn("redis rate counter unavailable, counting locally", slog.String("error", err.Error()))
		return c.fallback.IncrementBy(key, currentWindow, amount)
	}
	return nil
}

func (c *RedisCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisCounterTimeout)
	defer cancel()

	values, err := c.client.MGet(ctx, c.key(key, currentWindow), c.key(key, previousWindow)).Result()
	if err != nil {
		c.logger.Warn("redis rate counter unavailable, counting locally", slog.String("error", err.Error()))
		return c.fallback.Get(key, currentWindow, previousWindow)
	}

	curr, err := counterValue(values[0])
	if err != nil {
		return 0, 0, err
	}
	prev, err := counterValue(values[1])
	if err != nil {
		return 0, 0, err
	}
	return curr, prev, nil
}

func (c *RedisCounter) key(key string, window time.Time) string {
	return c.prefix + key + ":" + strconv.FormatInt(window.Unix(), 10)
}

func counterValue(v any) (int, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, errors.New("unexpected rate counter value type")
	}
	return strconv.Atoi(s)
}
