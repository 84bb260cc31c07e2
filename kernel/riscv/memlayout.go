package riscv

// Memory layout of the emulated machine.
// A go version of memlayout.h, shaped after qemu -machine virt:
//
// 10000000 -- uart0
// 80000000 -- kernel image (text, then data, then the rest of RAM)
// unused RAM after 80000000.

// the kernel uses physical memory thus:
// 80000000 -- kernel text, including the trampoline page
// ETEXT    -- kernel data
// KEND     -- start of kernel page allocation area
// PhysTop  -- end of RAM (set per machine)

const (
	UART0     = uint64(0x10000000)
	UART0_IRQ = 10
)

const (
	KERNBASE = uint64(0x80000000)

	// the trampoline's physical home is the second page of kernel
	// text, like the strampoline linker symbol.
	STRAMPOLINE = KERNBASE + PGSIZE

	ETEXT = KERNBASE + 0x100000
	KEND  = KERNBASE + 0x200000
)

// code entry points inside kernel text. The emulated hart transfers
// control through these addresses, so they only have to be distinct
// and mapped executable; they carry no bytes.
const (
	USERTRAP    = KERNBASE + 0x2000
	USERTRAPRET = KERNBASE + 0x2100
	SCHEDULER   = KERNBASE + 0x3000
)

// map the trampoline page to the highest address,
// in both user and kernel space.
const TRAMPOLINE = MAXVA - PGSIZE

// map kernel stacks beneath the trampoline,
// each surrounded by invalid guard pages.
func KSTACK(i int) uint64 { return TRAMPOLINE - uint64(i+1)*2*PGSIZE }

// User memory layout.
// USERBASE first:
//   text and data
//   guard page
//   fixed-size stack
//   ...
//   TRAPFRAME (used by the trampoline)
//   TRAMPOLINE (the same page as in the kernel)
const TRAPFRAME = TRAMPOLINE - PGSIZE

const USERBASE = uint64(0x10000)
