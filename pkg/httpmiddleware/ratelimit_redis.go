package httpmiddleware

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed window counter shared by every replica that uses
// the same Redis and prefix.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	max    int
	period time.Duration
	now    func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter allows limit requests per period and client. Counters are
// stored under prefix and expire with their window.
func NewRedisLimiter(client redis.Cmdable, prefix string, limit int, period time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		max:    limit,
		period: period,
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Quota, error) {
	start := l.now().Truncate(l.period)
	counter := l.prefix + key + ":" + strconv.FormatInt(start.Unix(), 10)

	var incr *redis.IntCmd
	if _, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, counter)
		p.PExpire(ctx, counter, l.period)
		return nil
	}); err != nil {
		return Quota{}, errors.Wrap(err, "count request")
	}

	used := int(incr.Val())
	return Quota{
		Allowed:   used <= l.max,
		Limit:     l.max,
		Remaining: max(l.max-used, 0),
		Reset:     start.Add(l.period),
	}, nil
}
