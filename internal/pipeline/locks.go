package pipeline

import "sync"

// Locks serializes runs that share a base name, and with it a chunk
// directory and a final transcript. The zero value is ready to use.
type Locks struct {
	mu   sync.Mutex
	held map[string]*baseLock
}

type baseLock struct {
	sync.Mutex
	refs int
}

// Lock blocks until base is free and returns the matching unlock.
func (l *Locks) Lock(base string) (unlock func()) {
	l.mu.Lock()
	if l.held == nil {
		l.held = make(map[string]*baseLock)
	}
	bl, ok := l.held[base]
	if !ok {
		bl = &baseLock{}
		l.held[base] = bl
	}
	bl.refs++
	l.mu.Unlock()

	bl.Lock()
	return func() {
		bl.Unlock()
		l.mu.Lock()
		bl.refs--
		if bl.refs == 0 {
			delete(l.held, base)
		}
		l.mu.Unlock()
	}
}
