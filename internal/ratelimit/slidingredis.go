package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether one more event for key fits in max events per window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// slidingScript trims expired events, records the new one only when it fits,
// and returns {allowed, count, reset_ms}. Rejected events are not stored so a
// client hammering the endpoint regains access once its accepted events age out.
var slidingScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < max then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// SlidingWindow counts events per key in a Redis sorted set scored by millisecond timestamps.
type SlidingWindow struct {
	Client *redis.Client
	Prefix string
	Now    func() time.Time
}

func (l SlidingWindow) key(key string) string {
	if l.Prefix == "" {
		return key
	}
	return strings.TrimSuffix(l.Prefix, ":") + ":" + key
}

// Allow implements Limiter.
func (l SlidingWindow) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	if l.Client == nil || max <= 0 || window <= 0 {
		return true, max, now.Add(window), nil
	}

	res, err := slidingScript.Run(ctx, l.Client, []string{l.key(key)},
		now.UnixMilli(), window.Milliseconds(), max, uuid.NewString()).Int64Slice()
	if err != nil {
		return false, 0, now.Add(window), err
	}
	remaining := max - int(res[1])
	if remaining < 0 {
		remaining = 0
	}
	return res[0] == 1, remaining, time.UnixMilli(res[2]), nil
}
