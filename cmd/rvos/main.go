// rvos boots the emulated machine and walks the cataloged programs
// through their lives: each one writes its greeting, yields once so
// the round-robin is visible, then exits.
//
// Without -batch it opens the controlling terminal raw and waits for
// a key between steps, which makes the trap traffic easy to follow.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	tty "github.com/mattn/go-tty"

	"rvos-in-go/kernel"
	"rvos-in-go/kernel/hart"
	"rvos-in-go/kernel/loader"
	"rvos-in-go/kernel/proc"
	"rvos-in-go/kernel/riscv"
)

func main() {
	batch := flag.Bool("batch", false, "run without waiting for keystrokes")
	flag.Parse()

	var out io.Writer = os.Stdout
	var pause func()

	if !*batch {
		t, err := tty.Open()
		if err == nil {
			defer t.Close()
			out = t.Output()
			pause = func() {
				fmt.Fprint(out, "[step] ")
				if r, err := t.ReadRune(); err == nil && r == 'q' {
					os.Exit(0)
				}
				fmt.Fprintln(out)
			}
		}
	}

	cat, kerr := loader.Default()
	if kerr != nil {
		fmt.Fprintln(os.Stderr, "rvos:", kerr)
		os.Exit(1)
	}

	m := hart.NewMachine(kernel.DefaultRAM)
	if kerr := kernel.Boot(m, cat, out); kerr != nil {
		fmt.Fprintln(os.Stderr, "rvos:", kerr)
		os.Exit(1)
	}

	// Boot returns with the first task in user mode. From here the
	// host plays the part of the user programs: every step is one
	// system call injected as a trap.
	wrote := make(map[int]bool)
	for m.Mode == hart.UMODE {
		if pause != nil {
			pause()
		}
		p := proc.Current()
		i, kerr := cat.Lookup(p.Name)
		if kerr != nil {
			fmt.Fprintln(os.Stderr, "rvos:", kerr)
			os.Exit(1)
		}
		start, end, _ := cat.AppBounds(i)

		switch {
		case !wrote[p.Pid]:
			wrote[p.Pid] = true
			ecall(m, kernel.SYS_WRITE, 1, riscv.USERBASE, end-start)
			// let the next task have the hart
			if m.Mode == hart.UMODE {
				ecall(m, kernel.SYS_YIELD, 0, 0, 0)
			}
		default:
			ecall(m, kernel.SYS_EXIT, 0, 0, 0)
		}
	}

	fmt.Fprintln(out, "all tasks finished, machine idle")
}

// ecall plays the user side of a system call: arguments in a0..a2,
// the number in a7, then the trap.
func ecall(m *hart.Machine, num, a0, a1, a2 uint64) {
	m.X[riscv.REG_A7] = num
	m.X[riscv.REG_A0] = a0
	m.X[riscv.REG_A1] = a1
	m.X[riscv.REG_A2] = a2
	m.TakeTrap(riscv.SCAUSE_ECALL_U, 0)
}
