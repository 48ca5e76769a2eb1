package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryCounter is a process-local Counter.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	count     int64
	expiresAt time.Time
}

var _ Counter = (*MemoryCounter)(nil)

// MemoryOption configures a MemoryCounter.
type MemoryOption func(*MemoryCounter)

// WithMemoryClock overrides the counter's time source.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *MemoryCounter) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryCounter creates an empty counter.
func NewMemoryCounter(opts ...MemoryOption) *MemoryCounter {
	m := &MemoryCounter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Incr implements Counter.
func (m *MemoryCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = &window{expiresAt: now.Add(ttl)}
		m.windows[key] = w
	}
	w.count++
	return w.count, nil
}

// Sweep drops expired windows.
func (m *MemoryCounter) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, w := range m.windows {
		if !now.Before(w.expiresAt) {
			delete(m.windows, k)
			removed++
		}
	}
	return removed
}
