package agent

import (
	"sync"
	"time"
)

// lockManager hands out one mutex per key so concurrent turns for the same
// (tenant, channel address) serialize their get-or-create and context writes
// while unrelated conversations proceed in parallel.
type lockManager struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	lastUsed time.Time
}

func newLockManager() *lockManager {
	return &lockManager{locks: make(map[string]*keyedLock)}
}

func (m *lockManager) acquire(key string) *keyedLock {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyedLock{}
		m.locks[key] = l
	}
	l.lastUsed = time.Now()
	m.mu.Unlock()

	l.Lock()
	return l
}

// cleanup drops locks idle for longer than maxAge. Only safe to call from a
// background loop; an in-flight holder keeps its own reference.
func (m *lockManager) cleanup(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for key, l := range m.locks {
		if l.lastUsed.Before(cutoff) && l.TryLock() {
			l.Unlock()
			delete(m.locks, key)
			removed++
		}
	}
	return removed
}
