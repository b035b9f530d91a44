package state

import "sync"

// pathLocks hands out one mutex per key. Entries are reference counted so
// the map does not grow with every path ever locked.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (p *pathLocks) lock(key string) func() {
	p.mu.Lock()
	if p.locks == nil {
		p.locks = make(map[string]*refMutex)
	}
	m, ok := p.locks[key]
	if !ok {
		m = &refMutex{}
		p.locks[key] = m
	}
	m.refs++
	p.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		p.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}
