package lockout

import (
	"sync"
	"time"
)

// recentFailures is the advisory, process-local memory of identities that
// recently failed a credential check. It lets a successful check skip the
// durable attempt-record delete in the common no-failure case. It is never
// authoritative: entries expire, the map is size-bounded, and losing it only
// costs a deferred cleanup (the designated force-clear endpoints still issue
// the delete unconditionally).
type recentFailures struct {
	mu      sync.Mutex
	entries map[string]time.Time
	maxKeys int
	ttl     time.Duration
	clock   Clock
}

func newRecentFailures(maxKeys int, ttl time.Duration, clock Clock) *recentFailures {
	return &recentFailures{
		entries: make(map[string]time.Time),
		maxKeys: maxKeys,
		ttl:     ttl,
		clock:   clock,
	}
}

// Remember records a failure for key, evicting the stalest entry when full.
func (m *recentFailures) Remember(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxKeys {
		m.evictOldestLocked(now)
	}
	m.entries[key] = now
}

// Has reports whether key failed recently. Expired entries are dropped on read.
func (m *recentFailures) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	at, ok := m.entries[key]
	if !ok {
		return false
	}
	if m.clock.Now().Sub(at) > m.ttl {
		delete(m.entries, key)
		return false
	}
	return true
}

// Forget drops key after a durable delete was issued.
func (m *recentFailures) Forget(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// evictOldestLocked removes expired entries, then the single stalest one if
// the map is still full. Linear scan: the map is small by construction.
func (m *recentFailures) evictOldestLocked(now time.Time) {
	oldestKey := ""
	var oldestAt time.Time
	for k, at := range m.entries {
		if now.Sub(at) > m.ttl {
			delete(m.entries, k)
			continue
		}
		if oldestKey == "" || at.Before(oldestAt) {
			oldestKey, oldestAt = k, at
		}
	}
	if len(m.entries) >= m.maxKeys && oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}
