// Package ratelimit provides a fixed-window login attempt limiter backed by
// Redis. The window is keyed per username+IP so a single noisy tablet cannot
// lock out a whole line.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// counter is the slice of the redis client the limiter needs. *redis.Client
// satisfies it; tests provide a fake.
type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
}

// Limiter counts attempts per key within a fixed window.
type Limiter struct {
	rdb    counter
	max    int64
	window time.Duration
}

// NewLimiter builds a Limiter allowing max attempts per window.
func NewLimiter(rdb *redis.Client, max int64, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, max: max, window: window}
}

// Allow records one attempt for key and reports whether it is still within
// the limit. If redis is unavailable the attempt is allowed: login must not
// depend on the limiter being up.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil || l.rdb == nil {
		return true, nil
	}

	rkey := fmt.Sprintf("login_attempts:%s", key)
	n, err := l.rdb.Incr(ctx, rkey).Result()
	if err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}
	if n == 1 {
		// first attempt in this window starts the clock
		l.rdb.Expire(ctx, rkey, l.window)
	}
	return n <= l.max, nil
}
