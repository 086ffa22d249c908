package guard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

func windowKey(visitorID string, windowIndex int64) string {
	return fmt.Sprintf("%s:%d", visitorID, windowIndex)
}

func windowIndexOf(key string) int64 {
	i := strings.LastIndexByte(key, ':')
	if i < 0 {
		return 0
	}
	idx, _ := strconv.ParseInt(key[i+1:], 10, 64)
	return idx
}

// MemoryRateLimiter is a process-local fixed-window counter. Counters are
// keyed by (visitor, window index); stale windows are swept periodically.
// State is lost on restart and is not shared across instances.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	counts  map[string]int
	nowFn   func() time.Time
	stopped chan struct{}
}

// NewMemoryRateLimiter creates a limiter allowing limit requests per visitor
// per window and starts its sweep goroutine.
func NewMemoryRateLimiter(window time.Duration, limit int) *MemoryRateLimiter {
	l := &MemoryRateLimiter{
		window:  window,
		limit:   limit,
		counts:  make(map[string]int),
		nowFn:   time.Now,
		stopped: make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Check implements RateLimiter.
func (l *MemoryRateLimiter) Check(_ context.Context, visitorID string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn().UnixMilli()
	windowMs := l.window.Milliseconds()
	windowIndex := now / windowMs
	key := windowKey(visitorID, windowIndex)

	if l.counts[key] >= l.limit {
		remaining := windowMs - now%windowMs
		reset := int((remaining + 999) / 1000)
		return Decision{Allowed: false, ResetSeconds: reset}, nil
	}

	l.counts[key]++
	return Decision{Allowed: true}, nil
}

// Close stops the sweep goroutine.
func (l *MemoryRateLimiter) Close() {
	close(l.stopped)
}

func (l *MemoryRateLimiter) sweep() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopped:
			return
		case <-ticker.C:
			l.mu.Lock()
			current := l.nowFn().UnixMilli() / l.window.Milliseconds()
			for key := range l.counts {
				if windowIndexOf(key) < current {
					delete(l.counts, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// MemoryResponseCache is a process-local reply cache with per-entry TTL.
// Expired entries are evicted on read; when the entry bound is reached the
// oldest entry is evicted to make room.
type MemoryResponseCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]cacheEntry
	nowFn      func() time.Time
}

type cacheEntry struct {
	reply   string
	created time.Time
}

// NewMemoryResponseCache creates a reply cache with the given TTL and entry
// bound. maxEntries <= 0 means unbounded.
func NewMemoryResponseCache(ttl time.Duration, maxEntries int) *MemoryResponseCache {
	return &MemoryResponseCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]cacheEntry),
		nowFn:      time.Now,
	}
}

// Get implements ResponseCache.
func (c *MemoryResponseCache) Get(_ context.Context, hospitalID uint, message string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := CacheKey(hospitalID, message)
	entry, found := c.entries[key]
	if !found {
		return "", false, nil
	}

	if c.nowFn().Sub(entry.created) > c.ttl {
		delete(c.entries, key)
		return "", false, nil
	}

	return entry.reply, true, nil
}

// Set implements ResponseCache.
func (c *MemoryResponseCache) Set(_ context.Context, hospitalID uint, message, reply string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := CacheKey(hospitalID, message)
	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		if _, exists := c.entries[key]; !exists {
			c.evictOldest()
		}
	}

	c.entries[key] = cacheEntry{reply: reply, created: c.nowFn()}
	return nil
}

func (c *MemoryResponseCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	first := true
	for key, entry := range c.entries {
		if first || entry.created.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.created
			first = false
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
