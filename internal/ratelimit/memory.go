package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps the sliding window of each client in process memory.
// Suitable for a single gateway instance; use RedisLimiter when several
// instances must share one budget.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time

	limit  int
	period time.Duration
}

func NewMemoryLimiter(limit int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		period:  period,
	}
}

// Check trims entries older than the window, admits the request if the
// remaining count is under the limit, and records it only when admitted.
func (m *MemoryLimiter) Check(_ context.Context, clientID string) (Decision, error) {
	now := time.Now()
	cutoff := now.Add(-m.period)

	m.mu.Lock()
	defer m.mu.Unlock()

	window := trimWindow(m.windows[clientID], cutoff)

	allowed := len(window) < m.limit
	if allowed {
		window = append(window, now)
	}
	m.windows[clientID] = window

	remaining := m.limit - len(window)
	if remaining < 0 {
		remaining = 0
	}

	reset := now.Add(m.period).Unix()
	if remaining == 0 && len(window) > 0 {
		reset = window[0].Add(m.period).Unix()
	}

	return Decision{Allowed: allowed, Remaining: remaining, Reset: reset}, nil
}

// StartJanitor evicts clients whose window has emptied, on a fixed ticker,
// until the context is cancelled.
func (m *MemoryLimiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.sweep()
			}
		}
	}()
}

func (m *MemoryLimiter) sweep() {
	cutoff := time.Now().Add(-m.period)

	m.mu.Lock()
	defer m.mu.Unlock()

	for clientID, window := range m.windows {
		window = trimWindow(window, cutoff)
		if len(window) == 0 {
			delete(m.windows, clientID)
			continue
		}
		m.windows[clientID] = window
	}
}

// Clients returns the number of client windows currently tracked.
func (m *MemoryLimiter) Clients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// trimWindow drops timestamps at or before the cutoff. Windows are
// append-only ordered slices, so the first retained index bounds the rest.
func trimWindow(window []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(window) && !window[i].After(cutoff) {
		i++
	}
	return window[i:]
}
