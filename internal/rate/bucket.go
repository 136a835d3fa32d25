package rate

import (
	"context"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"
)

type bucketEntry struct {
	limiter  *xrate.Limiter
	lastSeen time.Time
}

// Bucket is a per-client token bucket holding Points tokens and refilling one
// token every Window/Points.
type Bucket struct {
	mu        sync.Mutex
	limit     xrate.Limit
	burst     int
	window    time.Duration
	now       func() time.Time
	limiters  map[string]*bucketEntry
	lastSweep time.Time
}

// NewBucket returns a token-bucket limiter.
func NewBucket(cfg Config) *Bucket {
	cfg = cfg.normalized()
	return &Bucket{
		limit:    xrate.Every(cfg.Window / time.Duration(cfg.Points)),
		burst:    cfg.Points,
		window:   cfg.Window,
		now:      cfg.Now,
		limiters: make(map[string]*bucketEntry),
	}
}

// Admit implements Limiter.
func (b *Bucket) Admit(_ context.Context, clientID string) Decision {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.lastSweep) >= b.window {
		b.sweep(now)
		b.lastSweep = now
	}

	e, ok := b.limiters[clientID]
	if !ok {
		e = &bucketEntry{limiter: xrate.NewLimiter(b.limit, b.burst)}
		b.limiters[clientID] = e
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	if !r.OK() {
		return Decision{Allowed: false, Limit: b.burst, RetryAfter: b.window, ResetAt: now.Add(b.window)}
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{Allowed: false, Limit: b.burst, RetryAfter: delay, ResetAt: now.Add(delay)}
	}

	remaining := int(e.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   true,
		Limit:     b.burst,
		Remaining: remaining,
		ResetAt:   now.Add(b.window),
	}
}

// sweep evicts buckets idle for a full window; they would be full again anyway.
func (b *Bucket) sweep(now time.Time) {
	for id, e := range b.limiters {
		if now.Sub(e.lastSeen) >= b.window {
			delete(b.limiters, id)
		}
	}
}

// Len reports the number of tracked clients.
func (b *Bucket) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.limiters)
}
