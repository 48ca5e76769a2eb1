package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. Records expire lazily on access and
// in bulk through Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty process-local store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetIfAbsent implements Store.
func (m *MemoryStore) SetIfAbsent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.expires[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.expires[key] = now.Add(ttl)
	return true, nil
}

// Exists implements Store.
func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.expires[key]
	if !ok {
		return false, nil
	}
	if !m.now().Before(exp) {
		delete(m.expires, key)
		return false, nil
	}
	return true, nil
}

// Sweep drops expired records and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, exp := range m.expires {
		if !now.Before(exp) {
			delete(m.expires, k)
			removed++
		}
	}
	return removed
}
