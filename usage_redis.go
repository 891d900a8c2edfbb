package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultUsageKeyPrefix is prepended to every usage counter key
const DefaultUsageKeyPrefix = "authz:usage"

// counters outlive their month so late reads still see them
const defaultUsageTTL = 40 * 24 * time.Hour

// KEYS[1] counter key, ARGV[1] limit (-1 unlimited), ARGV[2] ttl seconds
var incrementUsageScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if limit >= 0 and current >= limit then
	return 0
end
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// RedisUsageRecorder keeps monthly usage counters in redis. The check and
// the increment run in one script so concurrent reservations never pass the
// limit.
type RedisUsageRecorder struct {
	client redis.Scripter
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

var _ UsageRecorder = (*RedisUsageRecorder)(nil)

// RedisUsageOption configures a RedisUsageRecorder
type RedisUsageOption func(*RedisUsageRecorder)

// WithUsageKeyPrefix overrides DefaultUsageKeyPrefix
func WithUsageKeyPrefix(prefix string) RedisUsageOption {
	return func(r *RedisUsageRecorder) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithUsageTTL sets how long a counter key lives after its first increment
func WithUsageTTL(ttl time.Duration) RedisUsageOption {
	return func(r *RedisUsageRecorder) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithUsageClock overrides the clock used to pick the period
func WithUsageClock(now func() time.Time) RedisUsageOption {
	return func(r *RedisUsageRecorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRedisUsageRecorder creates a recorder over client
func NewRedisUsageRecorder(client redis.Scripter, opts ...RedisUsageOption) *RedisUsageRecorder {
	if client == nil {
		panic("AUTHZ: redis usage configuration: client is required.")
	}

	r := &RedisUsageRecorder{
		client: client,
		prefix: DefaultUsageKeyPrefix,
		ttl:    defaultUsageTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Key returns the counter key for principalID and usageType in the current
// period
func (r *RedisUsageRecorder) Key(principalID uuid.UUID, usageType UsageType) string {
	return fmt.Sprintf("%s:%s:%s:%s", r.prefix, principalID, usageType, UsagePeriod(r.now()))
}

// IncrementUsage implements UsageRecorder
func (r *RedisUsageRecorder) IncrementUsage(ctx context.Context, principalID uuid.UUID, usageType UsageType, limit int) (bool, error) {
	if !usageType.IsValid() {
		return false, unknownUsageType(usageType)
	}
	if limit != Unlimited && limit <= 0 {
		return false, nil
	}

	applied, err := incrementUsageScript.Run(ctx, r.client,
		[]string{r.Key(principalID, usageType)},
		limit, int64(r.ttl/time.Second),
	).Int()
	if err != nil {
		return false, err
	}
	return applied == 1, nil
}
