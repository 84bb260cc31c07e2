// Package kernel boots the machine: memory, address spaces, the trap
// machinery, and one task per cataloged program.
package kernel

import (
	"io"

	"rvos-in-go/kernel/console"
	"rvos-in-go/kernel/hart"
	"rvos-in-go/kernel/kerror"
	"rvos-in-go/kernel/loader"
	"rvos-in-go/kernel/mem"
	"rvos-in-go/kernel/proc"
	"rvos-in-go/kernel/riscv"
	"rvos-in-go/kernel/spinlock"
	"rvos-in-go/kernel/trap"
	"rvos-in-go/kernel/vm"
)

// DefaultRAM is 16 MB, plenty for a handful of teaching tasks.
const DefaultRAM = 16 << 20

const (
	SYS_WRITE = 64
	SYS_EXIT  = 93
	SYS_YIELD = 124
)

// Boot brings the kernel up on m and launches every program in the
// catalog. It returns with the first task resumed in user mode.
func Boot(m *hart.Machine, cat *loader.Catalog, out io.Writer) *kerror.Error {
	console.Init(out)

	console.Printf("kmeminit... ")
	mem.Kinit(m, riscv.KEND, m.PhysTop)
	console.Printf("OK\n")

	console.Printf("kvminit...  ")
	vm.KVMInit(m)
	console.Printf("OK\n")

	console.Printf("kvminithart...  ")
	vm.KVMInitHart(m)
	console.Printf("OK\n")

	console.Printf("trapinit...  ")
	trap.TrampolineInit(m)
	trap.TrapInitHart(m)
	console.Printf("OK\n")

	console.Printf("procinit...  ")
	proc.ProcInit(m)
	proc.SetSyscallHandler(syscall)
	console.Printf("OK\n")

	console.Printf("catalog: %d programs\n", cat.NumApp())
	for i := 0; i < cat.NumApp(); i++ {
		name, _ := cat.AppName(i)
		start, end, _ := cat.AppBounds(i)
		console.Printf("  app %d: %s [%x, %x)\n", i, name, start, end)
		if err := spawn(m, cat, i, name); err != nil {
			return err
		}
	}

	proc.Run(m)
	return nil
}

// spawn builds one task from the catalog: an address space with the
// program image, a trap context primed with its entry point and stack,
// and a runnable slot in the task table.
func spawn(m *hart.Machine, cat *loader.Catalog, i int, name string) *kerror.Error {
	p, err := proc.AllocProc(m)
	if err != nil {
		return err
	}

	as, err := vm.NewUserSpace(m)
	if err != nil {
		return err
	}
	if err := cat.LoadApp(m, as, i); err != nil {
		return err
	}
	trap.InitContext(m, as, riscv.USERBASE, as.StackTop)

	p.Space = as
	p.Name = name

	spinlock.Acquire(m, &p.Lock)
	p.State = proc.RUNNABLE
	spinlock.Release(m, &p.Lock)
	return nil
}

// syscall is the kernel's trap-dispatch policy: just enough of a
// system-call surface to let the demo programs talk and leave.
func syscall(m *hart.Machine, num uint64, args [3]uint64) (uint64, proc.Disposition) {
	switch num {
	case SYS_WRITE:
		p := proc.Current()
		va, n := args[1], args[2]
		// every valid user buffer lies inside [USERBASE, StackTop);
		// the count is user-controlled, so bound it before sizing
		// anything by it
		if va < riscv.USERBASE || va >= p.Space.StackTop || n > p.Space.StackTop-va {
			console.Printf("sys_write: bad buffer pid=%d\n", p.Pid)
			return 0, proc.ExitTask
		}
		buf := make([]byte, n)
		if err := vm.CopyIn(m, p.Space.Pagetable, buf, va); err != nil {
			console.Printf("sys_write: bad buffer pid=%d\n", p.Pid)
			return 0, proc.ExitTask
		}
		console.Write(buf)
		return n, proc.Resume

	case SYS_YIELD:
		return 0, proc.YieldTask

	case SYS_EXIT:
		console.Printf("[kernel] %s exited with code %d\n", proc.Current().Name, int64(args[0]))
		return 0, proc.ExitTask

	default:
		console.Printf("[kernel] unknown syscall %d\n", num)
		return ^uint64(0), proc.Resume
	}
}
