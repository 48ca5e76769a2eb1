package idempotency

import "time"

// SetClock replaces the store clock in tests.
func (m *MemoryStore) SetClock(now func() time.Time) { m.now = now }
