package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Strategy names a limiter backend.
type Strategy string

const (
	StrategyFixedWindow Strategy = "fixed_window"
	StrategyTokenBucket Strategy = "token_bucket"
	StrategyRedis       Strategy = "redis"
)

const (
	// DefaultPoints is the number of requests admitted per window.
	DefaultPoints = 2
	// DefaultWindow is the window length.
	DefaultWindow = time.Second
)

// Decision is the outcome of one admission.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, with a floor of 1
// for rejected decisions.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Limiter admits or rejects one request for a client id.
type Limiter interface {
	Admit(ctx context.Context, clientID string) Decision
}

// Config holds limiter tuning parameters.
type Config struct {
	Strategy Strategy
	Points   int
	Window   time.Duration
	// Prefix namespaces Redis keys.
	Prefix string
	// RedisTimeout bounds one Redis round trip.
	RedisTimeout time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
	// OnFallback is called when the redis strategy serves from its local
	// window because Redis failed.
	OnFallback func(error)
}

func (c Config) normalized() Config {
	if c.Points <= 0 {
		c.Points = DefaultPoints
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Prefix == "" {
		c.Prefix = "wg:rl:"
	}
	if c.RedisTimeout <= 0 {
		c.RedisTimeout = 250 * time.Millisecond
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// New builds the limiter named by cfg.Strategy, wrapped with FailOpen.
// client is only used by the redis strategy.
func New(cfg Config, client redis.UniversalClient, onPanic func(any)) (Limiter, error) {
	cfg = cfg.normalized()

	var l Limiter
	switch cfg.Strategy {
	case "", StrategyFixedWindow:
		l = NewMemory(cfg)
	case StrategyTokenBucket:
		l = NewBucket(cfg)
	case StrategyRedis:
		if client == nil {
			return nil, fmt.Errorf("%w: redis strategy requires a client", ErrRedisUnavailable)
		}
		l = NewRedis(client, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}
	return FailOpen(l, onPanic), nil
}

type failOpen struct {
	next    Limiter
	onPanic func(any)
}

// FailOpen wraps l so that a panic during Admit admits the request.
func FailOpen(l Limiter, onPanic func(any)) Limiter {
	return &failOpen{next: l, onPanic: onPanic}
}

func (f *failOpen) Admit(ctx context.Context, clientID string) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			if f.onPanic != nil {
				f.onPanic(r)
			}
			d = Decision{Allowed: true}
		}
	}()
	return f.next.Admit(ctx, clientID)
}
