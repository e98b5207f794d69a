package service

import "sync"

// leadLocks serializes funnel processing per lead. Two inbound events for
// the same phone run one after the other; different leads proceed in
// parallel.
type leadLocks struct {
	mu    sync.Mutex
	locks map[string]*leadLock
}

type leadLock struct {
	mu   sync.Mutex
	refs int
}

func newLeadLocks() *leadLocks {
	return &leadLocks{locks: make(map[string]*leadLock)}
}

// acquire blocks until the lock for key is held and returns the release
// function. Entries are dropped once the last holder releases.
func (l *leadLocks) acquire(key string) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &leadLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
