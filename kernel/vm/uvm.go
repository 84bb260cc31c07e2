package vm

import (
	"rvos-in-go/kernel/hart"
	"rvos-in-go/kernel/kerror"
	"rvos-in-go/kernel/mem"
	"rvos-in-go/kernel/riscv"
)

// USERSTACK is the user stack size in pages.
const USERSTACK = 2

// AddressSpace describes one task's memory: its page table root, the
// physical page behind its trap context, and the extent of its image.
type AddressSpace struct {
	Pagetable   uint64
	TrapframePA uint64
	Size        uint64 // program image bytes
	StackTop    uint64 // initial user sp, 0 until MapUserStack
}

// NewUserSpace builds the skeleton every task address space shares:
// the trampoline page mapped at the top (same physical page as the
// kernel's, execute-only as far as user mode is concerned) and a fresh
// trap context page just below it, kernel-only.
func NewUserSpace(m *hart.Machine) (*AddressSpace, *kerror.Error) {
	root := mem.Kalloc(m)
	if root == 0 {
		return nil, errNoMem
	}
	mem.Memset(m, root, 0, riscv.PGSIZE)

	as := &AddressSpace{Pagetable: root}

	if err := MapPages(m, root, riscv.TRAMPOLINE, riscv.PGSIZE, riscv.STRAMPOLINE, riscv.PTE_R|riscv.PTE_X); err != nil {
		as.Free(m)
		return nil, err
	}

	tf := mem.Kalloc(m)
	if tf == 0 {
		as.Free(m)
		return nil, errNoMem
	}
	mem.Memset(m, tf, 0, riscv.PGSIZE)
	if err := MapPages(m, root, riscv.TRAPFRAME, riscv.PGSIZE, tf, riscv.PTE_R|riscv.PTE_W); err != nil {
		mem.Kfree(m, tf)
		as.Free(m)
		return nil, err
	}
	as.TrapframePA = tf

	return as, nil
}

// MapProgram copies a program image to USERBASE, readable, writable
// and executable from user mode.
func (as *AddressSpace) MapProgram(m *hart.Machine, data []byte) *kerror.Error {
	va := riscv.USERBASE
	for off := 0; off < len(data); off += int(riscv.PGSIZE) {
		pa := mem.Kalloc(m)
		if pa == 0 {
			return errNoMem
		}
		mem.Memset(m, pa, 0, riscv.PGSIZE)

		end := off + int(riscv.PGSIZE)
		if end > len(data) {
			end = len(data)
		}
		copy(m.Phys(pa, riscv.PGSIZE), data[off:end])

		if err := MapPages(m, as.Pagetable, va, riscv.PGSIZE, pa,
			riscv.PTE_R|riscv.PTE_W|riscv.PTE_X|riscv.PTE_U); err != nil {
			mem.Kfree(m, pa)
			return err
		}
		va += riscv.PGSIZE
	}
	as.Size = uint64(len(data))
	return nil
}

// MapUserStack places the stack above the image, behind an unmapped
// guard page, and records the initial stack pointer.
func (as *AddressSpace) MapUserStack(m *hart.Machine) *kerror.Error {
	base := riscv.PGROUNDUP(riscv.USERBASE+as.Size) + riscv.PGSIZE // skip guard
	for i := 0; i < USERSTACK; i++ {
		pa := mem.Kalloc(m)
		if pa == 0 {
			return errNoMem
		}
		mem.Memset(m, pa, 0, riscv.PGSIZE)
		if err := MapPages(m, as.Pagetable, base+uint64(i)*riscv.PGSIZE, riscv.PGSIZE, pa,
			riscv.PTE_R|riscv.PTE_W|riscv.PTE_U); err != nil {
			mem.Kfree(m, pa)
			return err
		}
	}
	as.StackTop = base + USERSTACK*riscv.PGSIZE
	return nil
}

// Token is the satp value selecting this address space.
func (as *AddressSpace) Token() uint64 { return riscv.MAKE_SATP(as.Pagetable) }

// Free returns every frame and table page to the allocator. The
// trampoline page is shared with every other space and stays.
func (as *AddressSpace) Free(m *hart.Machine) {
	freewalk(m, as.Pagetable, 2, 0)
	as.Pagetable = 0
	as.TrapframePA = 0
}

func freewalk(m *hart.Machine, pagetable uint64, level int, vaBase uint64) {
	for i := uint64(0); i < 512; i++ {
		pte := m.ReadPhys64(pagetable + i*8)
		if pte&riscv.PTE_V == 0 {
			continue
		}
		va := vaBase + i<<(12+uint64(level)*9)
		if pte&(riscv.PTE_R|riscv.PTE_W|riscv.PTE_X) == 0 {
			// interior node
			freewalk(m, riscv.PTE2PA(pte), level-1, va)
			continue
		}
		if va == riscv.TRAMPOLINE {
			continue
		}
		mem.Kfree(m, riscv.PTE2PA(pte))
	}
	mem.Kfree(m, pagetable)
}
