// Package proc keeps the task table and decides which kernel
// continuation the hart runs. Each task owns a kernel stack mapped
// just under the trampoline; the saved context of a suspended task
// lives at the top of that stack.
package proc

import (
	"rvos-in-go/kernel/hart"
	"rvos-in-go/kernel/kerror"
	"rvos-in-go/kernel/mem"
	"rvos-in-go/kernel/riscv"
	"rvos-in-go/kernel/spinlock"
	"rvos-in-go/kernel/vm"
)

const NPROC = 8

type Procstate int

const (
	UNUSED   Procstate = iota // 0
	USED                      // 1
	RUNNABLE                  // 2
	RUNNING                   // 3
	ZOMBIE                    // 4
)

type Proc struct {
	Lock spinlock.Spinlock

	// p.Lock must be held when using these:
	State Procstate
	Pid   int

	// private to the task, no lock needed
	Kstack   uint64 // bottom of the kernel stack page
	CtxPtr   uint64 // address of the saved TaskContext, valid while not running
	Space    *vm.AddressSpace
	Name     string
	ExitCode int
}

var procs [NPROC]Proc

var cpu struct {
	proc     *Proc
	ctxPtr   uint64 // the scheduler continuation's save slot
	stackPA  uint64
	schedIdx int
}

var nextpid int

var errNoProc = &kerror.Error{Module: "proc", Message: "no free task slot"}

// ProcInit carves out a kernel stack per task slot, maps each under
// the trampoline with a guard page between neighbors, and registers
// the kernel-text entry points the trap machinery jumps to.
func ProcInit(m *hart.Machine) {
	cpu.proc = nil
	cpu.ctxPtr = 0
	cpu.schedIdx = NPROC - 1 // first scan starts at slot 0
	nextpid = 1

	for i := 0; i < NPROC; i++ {
		p := &procs[i]
		*p = Proc{}
		spinlock.Initlock(&p.Lock)

		kstack := mem.Kalloc(m)
		if kstack == 0 {
			panic("procinit: kalloc failed")
		}
		vm.KVMMap(m, riscv.KSTACK(i), kstack, riscv.PGSIZE, riscv.PTE_R|riscv.PTE_W)
		p.Kstack = riscv.KSTACK(i)
		p.State = UNUSED
	}

	// the scheduler's own stack; identity mapped with the rest of RAM
	cpu.stackPA = mem.Kalloc(m)
	if cpu.stackPA == 0 {
		panic("procinit: kalloc failed")
	}

	m.RegisterCode(riscv.SCHEDULER, scheduler)
	m.RegisterCode(riscv.USERTRAP, usertrap)
	m.RegisterCode(riscv.USERTRAPRET, Usertrapret)
}

// AllocProc claims a task slot and synthesizes its first TaskContext:
// a saved region at the top of the kernel stack whose return address
// is the trap-exit routine, so the first switch into the task falls
// straight through to user mode.
func AllocProc(m *hart.Machine) (*Proc, *kerror.Error) {
	var p *Proc
	for i := 0; i < NPROC; i++ {
		p = &procs[i]
		spinlock.Acquire(m, &p.Lock)
		if p.State == UNUSED {
			goto found
		}
		spinlock.Release(m, &p.Lock)
	}
	return nil, errNoProc

found:
	p.Pid = nextpid
	nextpid++
	p.State = USED

	ctx := p.Kstack + riscv.PGSIZE - ctxWords*8
	vm.Write64(m, ctx, riscv.USERTRAPRET) // ra
	for w := 1; w < ctxWords; w++ {
		vm.Write64(m, ctx+uint64(w)*8, 0) // s0..s11
	}
	p.CtxPtr = ctx

	spinlock.Release(m, &p.Lock)
	return p, nil
}

// freeproc reclaims everything but the kernel stack, which stays with
// the slot. Caller holds p.Lock.
func freeproc(m *hart.Machine, p *Proc) {
	if p.Space != nil {
		p.Space.Free(m)
		p.Space = nil
	}
	p.Pid = 0
	p.Name = ""
	p.CtxPtr = 0
	p.ExitCode = 0
	p.State = UNUSED
}

// Current returns the task the hart last dispatched, or nil when the
// scheduler is between tasks.
func Current() *Proc { return cpu.proc }

// Run enters the scheduler continuation on the boot stack. It returns
// when the machine has dropped into user mode, or when no task is
// runnable.
func Run(m *hart.Machine) {
	m.X[riscv.REG_SP] = cpu.stackPA + riscv.PGSIZE
	m.Exec(riscv.SCHEDULER)
}

// scheduler is the cpu's idle continuation. It is re-entered through
// its registered address every time a task switches back.
func scheduler(m *hart.Machine) uint64 {
	if p := cpu.proc; p != nil {
		spinlock.Acquire(m, &p.Lock)
		if p.State == ZOMBIE {
			freeproc(m, p)
		}
		spinlock.Release(m, &p.Lock)
		cpu.proc = nil
	}

	m.IntrOn()
	for scanned := 0; scanned < NPROC; scanned++ {
		cpu.schedIdx = (cpu.schedIdx + 1) % NPROC
		p := &procs[cpu.schedIdx]

		spinlock.Acquire(m, &p.Lock)
		if p.State != RUNNABLE {
			spinlock.Release(m, &p.Lock)
			continue
		}
		p.State = RUNNING
		cpu.proc = p
		spinlock.Release(m, &p.Lock)

		// resume here when the task switches back
		m.X[riscv.REG_RA] = riscv.SCHEDULER
		Swtch(m, &cpu.ctxPtr, &p.CtxPtr)
		return m.X[riscv.REG_RA]
	}

	// nothing runnable; the machine idles
	return 0
}
