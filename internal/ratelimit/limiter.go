// Package ratelimit throttles public routes with a Redis-backed
// limiter so one client cannot starve the catalog.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Limiter wraps a ulule limiter instance. The zero value allows
// everything, which keeps tests and local tooling free of Redis.
type Limiter struct {
	inner *limiter.Limiter
}

// New builds a Redis-backed limiter allowing max requests per window.
func New(client *redis.Client, prefix string, max int, window time.Duration) (Limiter, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: prefix,
	})
	if err != nil {
		return Limiter{}, fmt.Errorf("ratelimit store: %w", err)
	}
	rate := limiter.Rate{Period: window, Limit: int64(max)}
	return Limiter{inner: limiter.New(store, rate)}, nil
}

// Allow consumes one slot for key and reports whether the request is
// within the limit.
func (l Limiter) Allow(ctx context.Context, key string) (allowed bool, remaining int64, reset time.Time, err error) {
	if l.inner == nil {
		return true, 0, time.Now(), nil
	}
	res, err := l.inner.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now(), err
	}
	return !res.Reached, res.Remaining, time.Unix(res.Reset, 0), nil
}
