package cache

import "sync"

// bookLocks serializes disk store writes and deletes per book so that an
// index entry always describes the blob the store holds.
type bookLocks struct {
	mu    sync.Mutex
	locks map[string]*bookLock
}

type bookLock struct {
	sync.Mutex
	refs int
}

func newBookLocks() *bookLocks {
	return &bookLocks{locks: make(map[string]*bookLock)}
}

// lock blocks until id is free and returns the matching unlock.
func (b *bookLocks) lock(id string) func() {
	b.mu.Lock()
	l, ok := b.locks[id]
	if !ok {
		l = &bookLock{}
		b.locks[id] = l
	}
	l.refs++
	b.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		b.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(b.locks, id)
		}
		b.mu.Unlock()
	}
}

// held reports how many ids currently have a lock outstanding.
func (b *bookLocks) held() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.locks)
}
