package proc

import (
	"rvos-in-go/kernel/hart"
	"rvos-in-go/kernel/riscv"
	"rvos-in-go/kernel/vm"
)

// TaskContext: ra plus the twelve callee-saved registers, as words on
// a kernel stack.
const ctxWords = 13

// calleeSaved lists s0..s11 in the order they sit behind ra.
var calleeSaved = [12]int{
	riscv.REG_S0, riscv.REG_S1,
	riscv.REG_S2, riscv.REG_S3, riscv.REG_S4, riscv.REG_S5,
	riscv.REG_S6, riscv.REG_S7, riscv.REG_S8, riscv.REG_S9,
	riscv.REG_S10, riscv.REG_S11,
}

// Swtch suspends the current kernel continuation and adopts another.
// It pushes ra and s0..s11 onto the current kernel stack, stores that
// region's address through cur, then pops the region *next points at.
// When it returns, the hart carries the adopted continuation's return
// address and stack pointer; the caller's job is to jump there.
// Nothing else is preserved: caller-saved state must already be dead.
func Swtch(m *hart.Machine, cur *uint64, next *uint64) {
	sp := m.X[riscv.REG_SP] - ctxWords*8
	vm.Write64(m, sp, m.X[riscv.REG_RA])
	for k, r := range calleeSaved {
		vm.Write64(m, sp+uint64(k+1)*8, m.X[r])
	}
	*cur = sp

	sp = *next
	m.X[riscv.REG_RA] = vm.Read64(m, sp)
	for k, r := range calleeSaved {
		m.X[r] = vm.Read64(m, sp+uint64(k+1)*8)
	}
	m.X[riscv.REG_SP] = sp + ctxWords*8
}
