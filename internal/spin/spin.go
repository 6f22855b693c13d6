// Package spin provides a test-and-set spinlock for very short critical
// sections.
package spin

import (
	"runtime"
	"sync/atomic"
)

// yieldAfter is how many failed attempts pass before the spinner yields.
const yieldAfter = 64

// Lock is a spinlock. The zero value is unlocked. It implements sync.Locker.
type Lock struct {
	held atomic.Bool
}

// Lock spins until the lock is acquired.
func (l *Lock) Lock() {
	for i := 0; ; i++ {
		if !l.held.Load() && l.held.CompareAndSwap(false, true) {
			return
		}
		if i >= yieldAfter {
			runtime.Gosched()
		}
	}
}

// TryLock acquires the lock if it is free and reports whether it did.
func (l *Lock) TryLock() bool {
	return l.held.CompareAndSwap(false, true)
}

// Unlock releases the lock.
func (l *Lock) Unlock() {
	l.held.Store(false)
}
