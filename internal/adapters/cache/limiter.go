package cache

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window rate limiter keyed by arbitrary strings
// (e.g. "otp:issue:+919876543210"). Allow reports whether another event fits
// inside the current window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// NewLimiter returns a Redis-backed limiter when addr is set, otherwise an
// in-process fallback. The fallback is per-instance; multi-node deployments
// should configure Redis.
func NewLimiter(addr, password string) Limiter {
	if addr == "" {
		return NewMemoryLimiter()
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
	})
	return &redisLimiter{client: client}
}

// redisLimiter counts events with INCR and lets the key expire with the window.
type redisLimiter struct {
	client *goredis.Client
}

func (l *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		// Fail open: a limiter outage must not block wallet traffic.
		return true, err
	}
	if count == 1 {
		l.client.Expire(ctx, key, window)
	}
	return count <= int64(limit), nil
}

// MemoryLimiter is the single-process fallback.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*windowEntry
	now     func() time.Time
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// NewMemoryLimiter creates an in-process fixed-window limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.windows[key]
	if !ok || now.After(entry.resetAt) {
		l.windows[key] = &windowEntry{count: 1, resetAt: now.Add(window)}
		return true, nil
	}
	entry.count++
	return entry.count <= limit, nil
}
