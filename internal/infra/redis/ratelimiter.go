package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/medtransit/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultAttemptLimit  int64 = 5
	defaultAttemptWindow       = time.Minute
	attemptKeyPrefix           = "pin-attempts"
)

var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.AttemptLimiter = (*RedisAttemptLimiter)(nil)

// RedisAttemptLimiter is a fixed-window attempt counter shared by every
// instance pointing at the same Redis.
type RedisAttemptLimiter struct {
	client *goredis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
	script *goredis.Script
}

func NewRedisAttemptLimiter(client *goredis.Client, limit int, window time.Duration) (*RedisAttemptLimiter, error) {
	return newRedisAttemptLimiter(client, int64(limit), window, time.Now)
}

func newRedisAttemptLimiter(
	client *goredis.Client,
	limit int64,
	window time.Duration,
	nowFn func() time.Time,
) (*RedisAttemptLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limit <= 0 {
		limit = defaultAttemptLimit
	}
	if window < time.Second {
		window = defaultAttemptWindow
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	return &RedisAttemptLimiter{
		client: client,
		limit:  limit,
		window: window,
		now:    nowFn,
		script: allowScript,
	}, nil
}

func (r *RedisAttemptLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r == nil || r.client == nil || r.script == nil {
		return false, fmt.Errorf("attempt limiter is not initialized")
	}

	normalizedKey := strings.ToLower(strings.TrimSpace(key))
	if normalizedKey == "" {
		return false, fmt.Errorf("limiter key is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	windowSeconds := int64(r.window / time.Second)
	bucket := r.now().UTC().Unix() / windowSeconds
	redisKey := fmt.Sprintf("%s:%s:%d", attemptKeyPrefix, normalizedKey, bucket)

	result, err := r.script.Run(ctx, r.client, []string{redisKey}, r.limit, windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate attempt limit: %w", err)
	}

	return result == 1, nil
}
