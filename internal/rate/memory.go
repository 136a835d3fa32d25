package rate

import (
	"context"
	"sync"
	"time"
)

type windowEntry struct {
	count   int
	resetAt time.Time
}

// Memory is a process-local fixed-window limiter.
type Memory struct {
	mu        sync.Mutex
	points    int
	window    time.Duration
	now       func() time.Time
	items     map[string]windowEntry
	lastSweep time.Time
}

// NewMemory returns a fixed-window limiter.
func NewMemory(cfg Config) *Memory {
	cfg = cfg.normalized()
	return &Memory{
		points: cfg.Points,
		window: cfg.Window,
		now:    cfg.Now,
		items:  make(map[string]windowEntry),
	}
}

// Admit implements Limiter.
func (m *Memory) Admit(_ context.Context, clientID string) Decision {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastSweep) >= m.window {
		m.sweep(now)
		m.lastSweep = now
	}

	e, ok := m.items[clientID]
	if !ok || !now.Before(e.resetAt) {
		e = windowEntry{resetAt: now.Add(m.window)}
	}

	if e.count >= m.points {
		m.items[clientID] = e
		return Decision{
			Allowed:    false,
			Limit:      m.points,
			RetryAfter: e.resetAt.Sub(now),
			ResetAt:    e.resetAt,
		}
	}

	e.count++
	m.items[clientID] = e
	return Decision{
		Allowed:   true,
		Limit:     m.points,
		Remaining: m.points - e.count,
		ResetAt:   e.resetAt,
	}
}

func (m *Memory) sweep(now time.Time) {
	for k, v := range m.items {
		if !now.Before(v.resetAt) {
			delete(m.items, k)
		}
	}
}

// Len reports the number of tracked clients.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
