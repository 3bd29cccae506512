package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the lock only if it still carries our token, so a
// holder whose TTL lapsed cannot release somebody else's lock.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LoanLocker serializes payment processing for a loan across every service
// instance sharing the Redis server.
type LoanLocker struct {
	rdb          *redis.Client
	ttl          time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewLoanLocker creates a distributed loan locker. ttl bounds how long a
// crashed holder can block a loan.
func NewLoanLocker(rdb *redis.Client, ttl, pollInterval time.Duration, logger *slog.Logger) *LoanLocker {
	return &LoanLocker{
		rdb:          rdb,
		ttl:          ttl,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Lock polls SET NX until it owns the loan's key or ctx ends.
func (l *LoanLocker) Lock(ctx context.Context, loanID string) (func(), error) {
	key := "loan-lock:" + loanID
	token := uuid.NewString()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis SET NX failed: %w", err)
		}
		if ok {
			return func() { l.unlock(key, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}
}

func (l *LoanLocker) unlock(key, token string) {
	// The request context may already be gone; the release must still happen.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := unlockScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
		l.logger.Error("failed to release loan lock", "key", key, "error", err)
	}
}
