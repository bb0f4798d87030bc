// Package lockmap provides mutual exclusion keyed by string.
// Entries exist only while some goroutine holds or waits for the key.
package lockmap

import (
	"context"
	"sync"
)

type holderLock struct {
	holders int
	// a token in ch means the key is held
	ch chan struct{}
}

type Lockmap struct {
	l sync.Mutex
	m map[string]*holderLock
}

func New(initSize int) *Lockmap {
	return &Lockmap{
		m: make(map[string]*holderLock, initSize),
	}
}

// Lock blocks until key is free or ctx is done. On ctx expiry the key is not
// held and ctx.Err() is returned.
func (l *Lockmap) Lock(ctx context.Context, key string) error {
	l.l.Lock()
	hl, ok := l.m[key]
	if !ok {
		hl = &holderLock{ch: make(chan struct{}, 1)}
		l.m[key] = hl
	}
	hl.holders++
	l.l.Unlock()

	select {
	case hl.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.release(key, hl)
		return ctx.Err()
	}
}

// Unlock releases key. Unlocking a key that is not locked panics.
func (l *Lockmap) Unlock(key string) {
	l.l.Lock()
	hl, ok := l.m[key]
	if !ok {
		l.l.Unlock()
		panic("lockmap: unlock of unlocked key " + key)
	}
	select {
	case <-hl.ch:
	default:
		l.l.Unlock()
		panic("lockmap: unlock of unlocked key " + key)
	}
	l.l.Unlock()

	l.release(key, hl)
}

func (l *Lockmap) release(key string, hl *holderLock) {
	l.l.Lock()
	defer l.l.Unlock()

	hl.holders--
	if hl.holders == 0 {
		delete(l.m, key)
	}
}

// Locks returns the number of keys currently held or waited for
func (l *Lockmap) Locks() int {
	l.l.Lock()
	defer l.l.Unlock()

	return len(l.m)
}
