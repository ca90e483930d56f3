package engine

import "sync"

// userLocks serializes turns per user id inside this process. Entries are
// refcounted and removed when the last holder releases, so the registry
// stays bounded by in-flight users, not by everyone ever seen.
type userLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	m    sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{entries: make(map[string]*lockEntry)}
}

func (l *userLocks) lock(userID string) {
	l.mu.Lock()
	e, ok := l.entries[userID]
	if !ok {
		e = &lockEntry{}
		l.entries[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.m.Lock()
}

func (l *userLocks) unlock(userID string) {
	l.mu.Lock()
	e := l.entries[userID]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, userID)
	}
	l.mu.Unlock()

	e.m.Unlock()
}
