package rate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var windowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// Redis is a fixed-window limiter whose counters live in Redis, shared by
// every gateway replica. Any Redis failure falls back to a local window.
type Redis struct {
	client     redis.UniversalClient
	points     int
	window     time.Duration
	prefix     string
	timeout    time.Duration
	now        func() time.Time
	fallback   *Memory
	onFallback func(error)
}

// NewRedis returns a Redis-backed limiter.
func NewRedis(client redis.UniversalClient, cfg Config) *Redis {
	cfg = cfg.normalized()
	return &Redis{
		client:     client,
		points:     cfg.Points,
		window:     cfg.Window,
		prefix:     cfg.Prefix,
		timeout:    cfg.RedisTimeout,
		now:        cfg.Now,
		fallback:   NewMemory(cfg),
		onFallback: cfg.OnFallback,
	}
}

// Admit implements Limiter.
func (l *Redis) Admit(ctx context.Context, clientID string) Decision {
	if l.client == nil {
		return l.fallback.Admit(ctx, clientID)
	}

	rctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	res, err := windowScript.Run(rctx, l.client, []string{l.prefix + clientID}, l.window.Milliseconds()).Result()
	if err != nil {
		return l.degrade(ctx, clientID, err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		return l.degrade(ctx, clientID, ErrRedisUnavailable)
	}
	count, _ := vals[0].(int64)
	ttlMs, _ := vals[1].(int64)
	if ttlMs < 0 {
		ttlMs = l.window.Milliseconds()
	}

	now := l.now()
	ttl := time.Duration(ttlMs) * time.Millisecond
	d := Decision{
		Allowed: int(count) <= l.points,
		Limit:   l.points,
		ResetAt: now.Add(ttl),
	}
	if d.Allowed {
		d.Remaining = l.points - int(count)
	} else {
		d.RetryAfter = ttl
	}
	return d
}

func (l *Redis) degrade(ctx context.Context, clientID string, err error) Decision {
	if l.onFallback != nil {
		l.onFallback(err)
	}
	return l.fallback.Admit(ctx, clientID)
}
