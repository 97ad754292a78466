package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "buddyledger:rate_limit"

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// Limiter is a fixed-window counter shared by every API instance through Redis.
// A nil Limiter, or one with a non-positive limit, allows everything.
type Limiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

func NewLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *Limiter {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = defaultPrefix
	}
	return &Limiter{client: client, prefix: p, limit: limit, window: window}
}

// NewClient parses a redis:// URL and checks the server is reachable.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (l *Limiter) key(scope, subject string) string {
	return fmt.Sprintf("%s:%s:%s", l.prefix, scope, subject)
}

// Allow consumes one unit for subject within scope. retryAfter is the number of
// whole seconds until the current window resets.
func (l *Limiter) Allow(ctx context.Context, scope, subject string) (allowed bool, retryAfter int, err error) {
	if l == nil || l.client == nil || l.limit <= 0 || l.window <= 0 {
		return true, 0, nil
	}
	scope, subject = strings.TrimSpace(scope), strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return true, 0, nil
	}

	windowMs := l.window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	raw, err := fixedWindowScript.Run(ctx, l.client, []string{l.key(scope, subject)}, windowMs).Result()
	if err != nil {
		return false, 0, fmt.Errorf("run limiter script: %w", err)
	}
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected redis limiter response shape: %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok || ttlMs < 0 {
		ttlMs = windowMs
	}

	retryAfter = int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return count <= int64(l.limit), retryAfter, nil
}
