package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultSendRate is the provider request budget per second.
const DefaultSendRate = 14

// SendRateLimiter throttles provider calls with a sliding one-second window
// shared by every worker through Redis. A full window makes Wait sleep
// until the oldest reservation ages out.
type SendRateLimiter struct {
	client *redis.Client
	key    string
	limit  int
	window time.Duration

	now func() time.Time
}

// NewSendRateLimiter creates the shared limiter. A non-positive limit falls
// back to DefaultSendRate.
func NewSendRateLimiter(client *redis.Client, limit int) *SendRateLimiter {
	if limit <= 0 {
		limit = DefaultSendRate
	}
	return &SendRateLimiter{
		client: client,
		key:    keyPrefix + ":ratelimit:send",
		limit:  limit,
		window: time.Second,
		now:    time.Now,
	}
}

// Wait blocks until a slot is reserved or ctx is done.
func (l *SendRateLimiter) Wait(ctx context.Context) error {
	for {
		allowed, wait, err := l.reserve(ctx)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		if wait <= 0 {
			wait = 5 * time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve attempts to take one slot; when denied it reports how long until
// the window frees up.
func (l *SendRateLimiter) reserve(ctx context.Context) (bool, time.Duration, error) {
	member := fmt.Sprintf("%d-%s", l.now().UnixNano(), uuid.NewString()[:8])
	res, err := rateLimitCmd.Run(ctx, l.client,
		[]string{l.key},
		l.now().UnixMilli(), l.window.Milliseconds(), l.limit, member).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limit check: unexpected reply %v", res)
	}
	if res[0].(int64) == 1 {
		return true, 0, nil
	}
	return false, time.Duration(res[1].(int64)) * time.Millisecond, nil
}
