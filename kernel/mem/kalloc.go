// Package mem hands out physical memory one page at a time. The free
// list is threaded through the free pages themselves: the first eight
// bytes of a free page hold the address of the next one.
package mem

import (
	"rvos-in-go/kernel/hart"
	"rvos-in-go/kernel/riscv"
)

type kmemT struct {
	freelist uint64
	start    uint64
	end      uint64
}

var kmem kmemT

// Kinit puts [paStart, paEnd) on the free list. Calling it again
// resets the allocator, which is what a fresh machine wants.
func Kinit(m *hart.Machine, paStart, paEnd uint64) {
	kmem = kmemT{start: paStart, end: paEnd}
	freerange(m, paStart, paEnd)
}

func freerange(m *hart.Machine, paStart, paEnd uint64) {
	for p := riscv.PGROUNDUP(paStart); p+riscv.PGSIZE <= paEnd; p += riscv.PGSIZE {
		Kfree(m, p)
	}
}

func Kfree(m *hart.Machine, pa uint64) {
	if pa%riscv.PGSIZE != 0 || pa < kmem.start || pa >= kmem.end {
		panic("kfree")
	}
	m.WritePhys64(pa, kmem.freelist)
	kmem.freelist = pa
}

// Kalloc returns one page of physical memory, or 0 if none is left.
func Kalloc(m *hart.Machine) uint64 {
	r := kmem.freelist
	if r != 0 {
		kmem.freelist = m.ReadPhys64(r)
	}
	return r
}

func Memset(m *hart.Machine, pa uint64, c byte, n uint64) {
	b := m.Phys(pa, n)
	for i := range b {
		b[i] = c
	}
}
