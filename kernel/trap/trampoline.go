package trap

import (
	"rvos-in-go/kernel/hart"
	"rvos-in-go/kernel/riscv"
)

// Entry points inside the trampoline page. The page sits at a virtual
// address far from the rest of the kernel, so these are the only two
// addresses whose code may run across an address-space switch.
const (
	UservecVA = riscv.TRAMPOLINE
	UserretVA = riscv.TRAMPOLINE + 0x200
)

// TrampolineInit registers the trampoline's two entry points and
// checks the layout invariant: both must fall inside the one shared
// page, or some address space would fault mid-switch.
func TrampolineInit(m *hart.Machine) {
	if UservecVA < riscv.TRAMPOLINE || UservecVA >= riscv.TRAMPOLINE+riscv.PGSIZE {
		panic("trampoline: uservec outside trampoline page")
	}
	if UserretVA < riscv.TRAMPOLINE || UserretVA >= riscv.TRAMPOLINE+riscv.PGSIZE {
		panic("trampoline: userret outside trampoline page")
	}
	m.RegisterCode(UservecVA, Uservec)
	m.RegisterCode(UserretVA, Userret)
}

// TrapInitHart points stvec at the trampoline so every user-mode trap
// lands on Uservec.
func TrapInitHart(m *hart.Machine) {
	m.Stvec = UservecVA
}
