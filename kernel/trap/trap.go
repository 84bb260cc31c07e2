// Package trap owns the user/supervisor crossing: the TrapContext an
// address space keeps at TRAPFRAME, and the save/restore routines that
// live in the trampoline page.
package trap

import (
	"rvos-in-go/kernel/hart"
	"rvos-in-go/kernel/riscv"
	"rvos-in-go/kernel/vm"
)

// TrapContext layout, in doublewords from the start of the TRAPFRAME
// page. Words 0..31 hold x0..x31; the x0 slot is never used.
const (
	TFSstatus    = 32
	TFSepc       = 33
	TFKernelSatp = 34
	TFKernelSp   = 35
	TFKernelTrap = 36
	TFWords      = 37
)

// Load reads one TrapContext word through the kernel's direct view of
// the trapframe's physical page.
func Load(m *hart.Machine, tfPA uint64, word int) uint64 {
	return m.ReadPhys64(tfPA + uint64(word)*8)
}

func Store(m *hart.Machine, tfPA uint64, word int, v uint64) {
	m.WritePhys64(tfPA+uint64(word)*8, v)
}

// InitContext prepares a brand-new task's TrapContext: program counter
// at entry, user stack pointer in the x2 slot, and an sstatus that
// will drop to user mode with interrupts enabled on the first return.
func InitContext(m *hart.Machine, as *vm.AddressSpace, entry, sp uint64) {
	tf := as.TrapframePA
	for w := 0; w < TFWords; w++ {
		Store(m, tf, w, 0)
	}
	Store(m, tf, riscv.REG_SP, sp)
	Store(m, tf, TFSepc, entry)
	Store(m, tf, TFSstatus, riscv.SSTATUS_SPIE) // SPP=0: user
}

// SetKernel records what the next trap entry will need: which address
// space to switch into, which stack to run on, and where to jump.
func SetKernel(m *hart.Machine, tfPA, kernelSatp, kernelSp, kernelTrap uint64) {
	Store(m, tfPA, TFKernelSatp, kernelSatp)
	Store(m, tfPA, TFKernelSp, kernelSp)
	Store(m, tfPA, TFKernelTrap, kernelTrap)
}

// Uservec is the trap entry. It runs with the user page table still
// active and with sscratch holding the TrapContext's virtual address;
// everything it needs to reach the kernel is read out of the
// TrapContext before the address space changes under it.
func Uservec(m *hart.Machine) uint64 {
	// csrrw sp, sscratch, sp: sp now addresses the TrapContext and
	// sscratch holds the suspended user stack pointer.
	m.X[riscv.REG_SP], m.Sscratch = m.Sscratch, m.X[riscv.REG_SP]
	tf := m.X[riscv.REG_SP]

	// save user registers. x2 was already repurposed, so its value
	// comes out of the swap slot.
	for i := 1; i < 32; i++ {
		if i == riscv.REG_SP {
			continue
		}
		vm.Write64(m, tf+uint64(i)*8, m.X[i])
	}
	vm.Write64(m, tf+riscv.REG_SP*8, m.Sscratch)

	vm.Write64(m, tf+TFSstatus*8, m.Sstatus)
	vm.Write64(m, tf+TFSepc*8, m.Sepc)

	// fetch the kernel side while its values are still reachable.
	kernelSatp := vm.Read64(m, tf+TFKernelSatp*8)
	kernelSp := vm.Read64(m, tf+TFKernelSp*8)
	kernelTrap := vm.Read64(m, tf+TFKernelTrap*8)

	m.Satp = kernelSatp
	m.FlushTLB()
	m.X[riscv.REG_SP] = kernelSp

	// jump, not call: the handler is reached through the address the
	// TrapContext carried, never through a relative transfer.
	return kernelTrap
}

// Userret is the trap exit. a0 carries the TrapContext's virtual
// address, a1 the satp of the address space that owns it.
func Userret(m *hart.Machine) uint64 {
	tf := m.X[riscv.REG_A0]
	usatp := m.X[riscv.REG_A1]

	m.Satp = usatp
	m.FlushTLB()

	// the next trap entry finds the TrapContext here.
	m.Sscratch = tf
	m.X[riscv.REG_SP] = tf

	m.Sstatus = vm.Read64(m, tf+TFSstatus*8)
	m.Sepc = vm.Read64(m, tf+TFSepc*8)

	for i := 1; i < 32; i++ {
		if i == riscv.REG_SP {
			continue
		}
		m.X[i] = vm.Read64(m, tf+uint64(i)*8)
	}
	// sp last: after this the TrapContext is unreachable from
	// registers except through sscratch.
	m.X[riscv.REG_SP] = vm.Read64(m, tf+riscv.REG_SP*8)

	m.Sret()
	return 0
}
