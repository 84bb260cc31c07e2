// Package vm maintains page tables. Tables live inside machine RAM
// exactly where hardware would walk them; the kernel's own loads and
// stores go through the live satp like everyone else's.
package vm

import (
	"rvos-in-go/kernel/hart"
	"rvos-in-go/kernel/kerror"
	"rvos-in-go/kernel/mem"
	"rvos-in-go/kernel/riscv"
)

var (
	errNoMem     = &kerror.Error{Module: "vm", Message: "out of physical pages"}
	errNotMapped = &kerror.Error{Module: "vm", Message: "address not mapped"}
)

var kernelPagetable uint64

// KVMInit builds the kernel address space: the UART, the kernel image
// and the rest of RAM mapped at their physical addresses, plus the
// trampoline page at the top of the virtual range.
func KVMInit(m *hart.Machine) {
	kernelPagetable = mem.Kalloc(m)
	if kernelPagetable == 0 {
		panic("kvminit: kalloc failed")
	}
	mem.Memset(m, kernelPagetable, 0, riscv.PGSIZE)

	KVMMap(m, riscv.UART0, riscv.UART0, riscv.PGSIZE, riscv.PTE_R|riscv.PTE_W)
	KVMMap(m, riscv.KERNBASE, riscv.KERNBASE, riscv.ETEXT-riscv.KERNBASE, riscv.PTE_R|riscv.PTE_X)
	KVMMap(m, riscv.ETEXT, riscv.ETEXT, m.PhysTop-riscv.ETEXT, riscv.PTE_R|riscv.PTE_W)
	KVMMap(m, riscv.TRAMPOLINE, riscv.STRAMPOLINE, riscv.PGSIZE, riscv.PTE_R|riscv.PTE_X)
}

// KVMInitHart switches the hart onto the kernel page table.
func KVMInitHart(m *hart.Machine) {
	m.Satp = riscv.MAKE_SATP(kernelPagetable)
	m.FlushTLB()
}

func KernelPagetable() uint64 { return kernelPagetable }

// KernelToken is the satp value selecting the kernel address space.
func KernelToken() uint64 { return riscv.MAKE_SATP(kernelPagetable) }

// Walk returns the physical address of the level-0 PTE slot for va,
// allocating intermediate table pages when alloc is set. Returns 0 if
// a needed table page is missing or cannot be allocated.
func Walk(m *hart.Machine, pagetable uint64, va uint64, alloc bool) uint64 {
	if va >= riscv.MAXVA {
		panic("walk")
	}

	for level := 2; level > 0; level-- {
		idx := riscv.PX(level, va)
		ptePA := pagetable + idx*8
		pte := m.ReadPhys64(ptePA)

		if pte&riscv.PTE_V != 0 {
			pagetable = riscv.PTE2PA(pte)
		} else {
			if !alloc {
				return 0
			}

			newPage := mem.Kalloc(m)
			if newPage == 0 {
				return 0
			}
			mem.Memset(m, newPage, 0, riscv.PGSIZE)

			m.WritePhys64(ptePA, riscv.PA2PTE(newPage)|riscv.PTE_V)
			pagetable = newPage
		}
	}

	return pagetable + riscv.PX(0, va)*8
}

// MapPages installs translations for [va, va+size) -> [pa, ...).
func MapPages(m *hart.Machine, pagetable uint64, va, size, pa uint64, perm int) *kerror.Error {
	a := riscv.PGROUNDDOWN(va)
	last := riscv.PGROUNDDOWN(va + size - 1)
	for {
		ptePA := Walk(m, pagetable, a, true)
		if ptePA == 0 {
			return errNoMem
		}
		if m.ReadPhys64(ptePA)&riscv.PTE_V != 0 {
			panic("remap")
		}
		m.WritePhys64(ptePA, riscv.PA2PTE(pa)|uint64(perm|riscv.PTE_V))
		if a == last {
			break
		}
		a += riscv.PGSIZE
		pa += riscv.PGSIZE
	}
	return nil
}

func KVMMap(m *hart.Machine, va, pa, sz uint64, perm int) {
	if err := MapPages(m, kernelPagetable, va, sz, pa, perm); err != nil {
		panic("kvmmap")
	}
}

// Translate resolves va through the given page table.
func Translate(m *hart.Machine, pagetable uint64, va uint64) (uint64, *kerror.Error) {
	ptePA := Walk(m, pagetable, va, false)
	if ptePA == 0 {
		return 0, errNotMapped
	}
	pte := m.ReadPhys64(ptePA)
	if pte&riscv.PTE_V == 0 {
		return 0, errNotMapped
	}
	return riscv.PTE2PA(pte) + va%riscv.PGSIZE, nil
}

// PTE returns the raw level-0 entry for va, or 0 when unmapped.
func PTE(m *hart.Machine, pagetable uint64, va uint64) uint64 {
	ptePA := Walk(m, pagetable, va, false)
	if ptePA == 0 {
		return 0
	}
	return m.ReadPhys64(ptePA)
}

func activeRoot(m *hart.Machine) (uint64, bool) {
	if m.Satp == 0 {
		// paging off during early boot: physical addressing
		return 0, false
	}
	return riscv.SATP2PA(m.Satp), true
}

// Read64 loads a doubleword at va through the active address space.
// The kernel touching an unmapped address is fatal, not recoverable.
func Read64(m *hart.Machine, va uint64) uint64 {
	root, paged := activeRoot(m)
	if !paged {
		return m.ReadPhys64(va)
	}
	pa, err := Translate(m, root, va)
	if err != nil {
		panic("read64: " + err.Message)
	}
	return m.ReadPhys64(pa)
}

// Write64 stores a doubleword at va through the active address space.
func Write64(m *hart.Machine, va uint64, v uint64) {
	root, paged := activeRoot(m)
	if !paged {
		m.WritePhys64(va, v)
		return
	}
	pa, err := Translate(m, root, va)
	if err != nil {
		panic("write64: " + err.Message)
	}
	m.WritePhys64(pa, v)
}

// CopyIn copies len(dst) bytes from user virtual address srcva in the
// address space selected by pagetable. Only pages marked user
// accessible qualify; a user pointer must not reach kernel-only
// mappings like the trampoline.
func CopyIn(m *hart.Machine, pagetable uint64, dst []byte, srcva uint64) *kerror.Error {
	n := uint64(len(dst))
	for n > 0 {
		va0 := riscv.PGROUNDDOWN(srcva)
		if va0 >= riscv.MAXVA {
			return errNotMapped
		}
		pte := PTE(m, pagetable, va0)
		if pte&riscv.PTE_V == 0 || pte&riscv.PTE_U == 0 {
			return errNotMapped
		}
		pa0 := riscv.PTE2PA(pte)
		cnt := riscv.PGSIZE - (srcva - va0)
		if cnt > n {
			cnt = n
		}
		src := m.Phys(pa0+(srcva-va0), cnt)
		copy(dst[uint64(len(dst))-n:], src)
		n -= cnt
		srcva = va0 + riscv.PGSIZE
	}
	return nil
}
