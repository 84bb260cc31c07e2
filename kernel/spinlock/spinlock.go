// Package spinlock is the kernel's mutual exclusion primitive. With a
// single hart the lock never spins for long; interrupts are disabled
// across the critical section so a trap cannot observe it half done.
package spinlock

import (
	"sync/atomic"

	"rvos-in-go/kernel/hart"
)

type Spinlock struct {
	locked uint32

	// saved interrupt state to restore on release
	wasOn bool
}

func Initlock(lk *Spinlock) {
	lk.locked = 0
}

func Acquire(m *hart.Machine, lk *Spinlock) {
	wasOn := m.IntrGet()
	m.IntrOff()
	for !atomic.CompareAndSwapUint32(&lk.locked, 0, 1) {
	}
	lk.wasOn = wasOn
}

func Release(m *hart.Machine, lk *Spinlock) {
	wasOn := lk.wasOn
	atomic.StoreUint32(&lk.locked, 0)
	if wasOn {
		m.IntrOn()
	}
}

func Holding(lk *Spinlock) bool {
	return atomic.LoadUint32(&lk.locked) == 1
}
