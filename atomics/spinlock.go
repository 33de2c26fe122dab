package atomics

import (
	"runtime"
	"sync/atomic"
)

const spinsBeforeYield = 64

// SpinLock is a test-and-set lock for very short critical sections.
// The zero value is unlocked.
type SpinLock struct {
	_     noCopy
	state uint32
}

// Lock spins until the lock is acquired, yielding the processor after a
// bounded number of failed attempts.
func (l *SpinLock) Lock() {
	for spins := 0; !l.TryLock(); spins++ {
		if spins >= spinsBeforeYield {
			runtime.Gosched()
			spins = 0
		}
	}
}

// TryLock acquires the lock if it is free.
func (l *SpinLock) TryLock() bool {
	return atomic.LoadUint32(&l.state) == 0 && atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// Unlock releases the lock.
func (l *SpinLock) Unlock() {
	atomic.StoreUint32(&l.state, 0)
}
