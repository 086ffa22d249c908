package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter keeps fixed-window counters in Redis so the limit holds
// across multiple instances. Window keys carry a TTL of two windows so stale
// counters expire on their own.
type RedisRateLimiter struct {
	client *redis.Client
	window time.Duration
	limit  int
}

// NewRedisRateLimiter creates a limiter backed by the given client.
func NewRedisRateLimiter(client *redis.Client, window time.Duration, limit int) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, window: window, limit: limit}
}

// Check implements RateLimiter.
func (l *RedisRateLimiter) Check(ctx context.Context, visitorID string) (Decision, error) {
	now := time.Now().UnixMilli()
	windowMs := l.window.Milliseconds()
	windowIndex := now / windowMs
	key := fmt.Sprintf("chatbot:rl:%s:%d", visitorID, windowIndex)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		l.client.Expire(ctx, key, 2*l.window)
	}

	if int(count) > l.limit {
		remaining := windowMs - now%windowMs
		reset := int((remaining + 999) / 1000)
		return Decision{Allowed: false, ResetSeconds: reset}, nil
	}

	return Decision{Allowed: true}, nil
}

// RedisResponseCache stores replies in Redis with the TTL applied at write
// time; expiry is handled by Redis itself.
type RedisResponseCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisResponseCache creates a reply cache backed by the given client.
func NewRedisResponseCache(client *redis.Client, ttl time.Duration) *RedisResponseCache {
	return &RedisResponseCache{client: client, ttl: ttl}
}

// Get implements ResponseCache.
func (c *RedisResponseCache) Get(ctx context.Context, hospitalID uint, message string) (string, bool, error) {
	reply, err := c.client.Get(ctx, "chatbot:cache:"+CacheKey(hospitalID, message)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("response cache get: %w", err)
	}
	return reply, true, nil
}

// Set implements ResponseCache.
func (c *RedisResponseCache) Set(ctx context.Context, hospitalID uint, message, reply string) error {
	err := c.client.Set(ctx, "chatbot:cache:"+CacheKey(hospitalID, message), reply, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("response cache set: %w", err)
	}
	return nil
}
