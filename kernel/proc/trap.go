package proc

import (
	"rvos-in-go/kernel/console"
	"rvos-in-go/kernel/hart"
	"rvos-in-go/kernel/riscv"
	"rvos-in-go/kernel/spinlock"
	"rvos-in-go/kernel/trap"
	"rvos-in-go/kernel/vm"
)

// Disposition is what the external handlers tell the core to do with
// the trapped task.
type Disposition int

const (
	Resume Disposition = iota
	YieldTask
	ExitTask
)

// SyscallFn interprets a system call. Argument decoding and semantics
// belong to the caller; the core only moves register values.
type SyscallFn func(m *hart.Machine, num uint64, args [3]uint64) (uint64, Disposition)

// TimerFn decides what a timer tick means for the current task.
type TimerFn func(m *hart.Machine) Disposition

// mocked by tests and replaced by the kernel at boot
var (
	syscallFn SyscallFn = defaultSyscall
	timerFn   TimerFn   = defaultTimer
)

func SetSyscallHandler(fn SyscallFn) { syscallFn = fn }
func SetTimerHandler(fn TimerFn)     { timerFn = fn }

func defaultSyscall(m *hart.Machine, num uint64, args [3]uint64) (uint64, Disposition) {
	console.Printf("usertrap: unknown syscall %d\n", num)
	return 0, ExitTask
}

func defaultTimer(m *hart.Machine) Disposition { return YieldTask }

// usertrap is where Uservec lands once the kernel address space is
// active. The current task's TrapContext holds everything about the
// suspended user state.
func usertrap(m *hart.Machine) uint64 {
	if m.Sstatus&riscv.SSTATUS_SPP != 0 {
		panic("usertrap: not from user mode")
	}
	p := cpu.proc
	if p == nil {
		panic("usertrap: no current task")
	}
	tf := p.Space.TrapframePA

	disp := Resume
	exitCode := -1
	scause := m.Scause
	switch {
	case scause == riscv.SCAUSE_ECALL_U:
		// sepc points at the ecall; resume past it
		trap.Store(m, tf, trap.TFSepc, trap.Load(m, tf, trap.TFSepc)+4)
		num := trap.Load(m, tf, riscv.REG_A7)
		args := [3]uint64{
			trap.Load(m, tf, riscv.REG_A0),
			trap.Load(m, tf, riscv.REG_A1),
			trap.Load(m, tf, riscv.REG_A2),
		}
		var ret uint64
		ret, disp = syscallFn(m, num, args)
		trap.Store(m, tf, riscv.REG_A0, ret)
		if disp == ExitTask {
			// exiting system calls carry the status in a0
			exitCode = int(int64(args[0]))
		}

	case scause == riscv.SCAUSE_STI || scause == riscv.SCAUSE_SSI:
		disp = timerFn(m)

	case scause == riscv.SCAUSE_STORE_PAGE_FAULT || scause == riscv.SCAUSE_LOAD_PAGE_FAULT:
		console.Printf("usertrap: page fault pid=%d va=%x, core dumped\n", p.Pid, m.Stval)
		disp = ExitTask

	case scause == riscv.SCAUSE_ILLEGAL_INSTRUCTION:
		console.Printf("usertrap: illegal instruction pid=%d, core dumped\n", p.Pid)
		disp = ExitTask

	default:
		console.Printf("usertrap: unexpected scause %x pid=%d sepc=%x\n",
			scause, p.Pid, trap.Load(m, tf, trap.TFSepc))
		disp = ExitTask
	}

	switch disp {
	case YieldTask:
		return yield(m, p)
	case ExitTask:
		return exit(m, p, exitCode)
	default:
		return riscv.USERTRAPRET
	}
}

// Usertrapret is the trap-exit routine, and the return address every
// brand-new TaskContext is born with. It refreshes the kernel half of
// the TrapContext, forces the saved status back to user mode, and
// hands (TrapContext address, owning satp) to the trampoline.
func Usertrapret(m *hart.Machine) uint64 {
	p := cpu.proc
	if p == nil {
		panic("usertrapret: no current task")
	}
	tf := p.Space.TrapframePA

	trap.SetKernel(m, tf, vm.KernelToken(), p.Kstack+riscv.PGSIZE, riscv.USERTRAP)

	st := trap.Load(m, tf, trap.TFSstatus)
	st &= ^uint64(riscv.SSTATUS_SPP)  // return to user mode
	st |= riscv.SSTATUS_SPIE          // with interrupts on
	trap.Store(m, tf, trap.TFSstatus, st)

	m.X[riscv.REG_A0] = riscv.TRAPFRAME
	m.X[riscv.REG_A1] = p.Space.Token()
	return trap.UserretVA
}

// yield parks the task behind the scheduler. When the scheduler picks
// it again, the restored return address finishes the trap cycle.
func yield(m *hart.Machine, p *Proc) uint64 {
	spinlock.Acquire(m, &p.Lock)
	p.State = RUNNABLE
	m.X[riscv.REG_RA] = riscv.USERTRAPRET
	Swtch(m, &p.CtxPtr, &cpu.ctxPtr)
	spinlock.Release(m, &p.Lock)
	return m.X[riscv.REG_RA]
}

// exit abandons the task. Its context is saved into a slot nobody will
// ever resume; the scheduler reaps the zombie on its next pass.
func exit(m *hart.Machine, p *Proc, code int) uint64 {
	spinlock.Acquire(m, &p.Lock)
	p.State = ZOMBIE
	p.ExitCode = code
	var unused uint64
	Swtch(m, &unused, &cpu.ctxPtr)
	spinlock.Release(m, &p.Lock)
	return m.X[riscv.REG_RA]
}
