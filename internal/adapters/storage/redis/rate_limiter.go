package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiterAdapter is a Redis implementation of the RateLimiterRepository port.
type RateLimiterAdapter struct {
	rdb    *redis.Client
	prefix string
}

// NewRateLimiterAdapter returns a limiter storing its counters under "ratelimit:".
func NewRateLimiterAdapter(rdb *redis.Client) *RateLimiterAdapter {
	return &RateLimiterAdapter{rdb: rdb, prefix: "ratelimit:"}
}

// IsAllowed implements the rate limiting logic using a fixed-window algorithm in Redis.
func (a *RateLimiterAdapter) IsAllowed(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	key = a.prefix + key

	// INCR and the first-hit EXPIRE go in one round trip so a crash between
	// them cannot leave a counter without a TTL.
	pipe := a.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis INCR/EXPIRE failed: %w", err)
	}

	return incr.Val() <= int64(limit), nil
}
