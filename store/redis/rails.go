package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rails is the shared idempotency ledger and rate-limit counter. It needs
// only a Redis client, so deployments that keep their records elsewhere
// can still share both across instances.
type Rails struct {
	rdb goredis.UniversalClient
}

// NewRails wraps a Redis client.
func NewRails(rdb goredis.UniversalClient) *Rails {
	return &Rails{rdb: rdb}
}

// incrScript increments a fixed-window counter and starts its expiry on
// the first hit, in one round trip.
// KEYS[1] = counter key, ARGV[1] = ttl in milliseconds
var incrScript = goredis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then redis.call('PEXPIRE', KEYS[1], ARGV[1]) end
return n
`)

// SetIfAbsent records an idempotency key for ttl unless it is already
// live. It implements idempotency.Store.
func (s *Rails) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, prefixIdempotency+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("replydesk/redis: idempotency set: %w", err)
	}
	return ok, nil
}

// Exists reports whether an idempotency key is live.
func (s *Rails) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, prefixIdempotency+key).Result()
	if err != nil {
		return false, fmt.Errorf("replydesk/redis: idempotency exists: %w", err)
	}
	return n > 0, nil
}

// Incr bumps a rate-limit window counter. It implements ratelimit.Counter.
func (s *Rails) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := incrScript.Run(ctx, s.rdb, []string{prefixRateLimit + key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("replydesk/redis: rate counter: %w", err)
	}
	return n, nil
}
