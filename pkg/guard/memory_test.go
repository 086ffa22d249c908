package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(window time.Duration, limit int) (*MemoryRateLimiter, *time.Time) {
	l := NewMemoryRateLimiter(window, limit)
	now := time.UnixMilli(1_700_000_000_000)
	l.nowFn = func() time.Time { return now }
	return l, &now
}

func TestRateLimiterAllowsFirstRequest(t *testing.T) {
	l, _ := newTestLimiter(5*time.Minute, 1)
	defer l.Close()

	d, err := l.Check(context.Background(), "visitor-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRateLimiterDeniesSecondRequestInWindow(t *testing.T) {
	l, _ := newTestLimiter(5*time.Minute, 1)
	defer l.Close()

	ctx := context.Background()
	d, err := l.Check(ctx, "visitor-1")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l.Check(ctx, "visitor-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.ResetSeconds, 0)
	assert.LessOrEqual(t, d.ResetSeconds, 300)
}

func TestRateLimiterAllowsAfterWindowRollover(t *testing.T) {
	l, now := newTestLimiter(5*time.Minute, 1)
	defer l.Close()

	ctx := context.Background()
	d, _ := l.Check(ctx, "visitor-1")
	require.True(t, d.Allowed)
	d, _ = l.Check(ctx, "visitor-1")
	require.False(t, d.Allowed)

	*now = now.Add(5 * time.Minute)

	d, err := l.Check(ctx, "visitor-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRateLimiterIsolatesVisitors(t *testing.T) {
	l, _ := newTestLimiter(5*time.Minute, 1)
	defer l.Close()

	ctx := context.Background()
	d, _ := l.Check(ctx, "visitor-1")
	require.True(t, d.Allowed)

	d, err := l.Check(ctx, "visitor-2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRateLimiterResetSecondsCeiling(t *testing.T) {
	l, now := newTestLimiter(5*time.Minute, 1)
	defer l.Close()

	// Position just past a window boundary so the remainder is not a
	// whole number of seconds.
	*now = time.UnixMilli((now.UnixMilli()/300_000)*300_000 + 100)

	ctx := context.Background()
	d, _ := l.Check(ctx, "visitor-1")
	require.True(t, d.Allowed)
	d, _ = l.Check(ctx, "visitor-1")
	require.False(t, d.Allowed)
	assert.Equal(t, 300, d.ResetSeconds)
}

func TestResponseCacheNormalizesKey(t *testing.T) {
	c := NewMemoryResponseCache(10*time.Minute, 0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, 1, "What are your opening hours?", "9 to 5"))

	reply, hit, err := c.Get(ctx, 1, "  WHAT ARE YOUR OPENING HOURS?  ")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "9 to 5", reply)
}

func TestResponseCacheScopedByHospital(t *testing.T) {
	c := NewMemoryResponseCache(10*time.Minute, 0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, 1, "hello", "hi from one"))

	_, hit, err := c.Get(ctx, 2, "hello")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestResponseCacheExpiresAfterTTL(t *testing.T) {
	c := NewMemoryResponseCache(10*time.Minute, 0)
	now := time.Now()
	c.nowFn = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, 1, "hello", "hi"))

	now = now.Add(10*time.Minute + time.Second)
	_, hit, err := c.Get(ctx, 1, "hello")
	require.NoError(t, err)
	assert.False(t, hit)

	// The expired entry is evicted on read.
	assert.Empty(t, c.entries)
}

func TestResponseCacheEvictsOldestAtCapacity(t *testing.T) {
	c := NewMemoryResponseCache(10*time.Minute, 2)
	now := time.Now()
	c.nowFn = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, 1, "first", "a"))
	now = now.Add(time.Second)
	require.NoError(t, c.Set(ctx, 1, "second", "b"))
	now = now.Add(time.Second)
	require.NoError(t, c.Set(ctx, 1, "third", "c"))

	_, hit, _ := c.Get(ctx, 1, "first")
	assert.False(t, hit)
	_, hit, _ = c.Get(ctx, 1, "second")
	assert.True(t, hit)
	_, hit, _ = c.Get(ctx, 1, "third")
	assert.True(t, hit)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "3:hello world", CacheKey(3, "  Hello World "))
}
