package store

import "sync"

// caseLocks serializes read-modify-write sequences per case identifier.
// No ordering is guaranteed across different cases.
type caseLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newCaseLocks() *caseLocks {
	return &caseLocks{m: make(map[string]*sync.Mutex)}
}

func (l *caseLocks) lock(id string) {
	l.mu.Lock()
	m, ok := l.m[id]
	if !ok {
		m = &sync.Mutex{}
		l.m[id] = m
	}
	l.mu.Unlock()
	m.Lock()
}

func (l *caseLocks) unlock(id string) {
	l.mu.Lock()
	m := l.m[id]
	l.mu.Unlock()
	m.Unlock()
}
