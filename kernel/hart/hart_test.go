package hart

import (
	"testing"

	"rvos-in-go/kernel/riscv"
)

func TestPhysAccess(t *testing.T) {
	m := NewMachine(1 << 20)

	m.WritePhys64(riscv.KERNBASE+0x100, 0xdeadbeef)
	if exp, got := uint64(0xdeadbeef), m.ReadPhys64(riscv.KERNBASE+0x100); exp != got {
		t.Fatalf("expected %x; got %x", exp, got)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range physical access")
		}
	}()
	m.ReadPhys64(riscv.KERNBASE - 8)
}

func TestExecFollowsTargets(t *testing.T) {
	m := NewMachine(1 << 20)

	var order []uint64
	m.RegisterCode(0x1000, func(m *Machine) uint64 {
		order = append(order, 0x1000)
		return 0x2000
	})
	m.RegisterCode(0x2000, func(m *Machine) uint64 {
		order = append(order, 0x2000)
		return 0
	})

	m.Exec(0x1000)
	if len(order) != 2 || order[0] != 0x1000 || order[1] != 0x2000 {
		t.Fatalf("unexpected dispatch order %v", order)
	}
}

func TestRegisterCodeRemapPanics(t *testing.T) {
	m := NewMachine(1 << 20)
	m.RegisterCode(0x1000, func(m *Machine) uint64 { return 0 })

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double registration")
		}
	}()
	m.RegisterCode(0x1000, func(m *Machine) uint64 { return 0 })
}

func TestTakeTrapSavesInterruptState(t *testing.T) {
	m := NewMachine(1 << 20)
	m.Mode = UMODE
	m.PC = 0x4242
	m.IntrOn()
	m.Stvec = 0x1000

	var sawCause uint64
	m.RegisterCode(0x1000, func(m *Machine) uint64 {
		sawCause = m.Scause
		return 0
	})

	m.TakeTrap(riscv.SCAUSE_ECALL_U, 0x77)

	if sawCause != riscv.SCAUSE_ECALL_U {
		t.Fatalf("expected cause %x; got %x", uint64(riscv.SCAUSE_ECALL_U), sawCause)
	}
	if m.Mode != SMODE {
		t.Fatal("expected supervisor mode after trap")
	}
	if m.Sepc != 0x4242 {
		t.Fatalf("expected sepc 4242; got %x", m.Sepc)
	}
	if m.Stval != 0x77 {
		t.Fatalf("expected stval 77; got %x", m.Stval)
	}
	if m.Sstatus&riscv.SSTATUS_SPP != 0 {
		t.Fatal("expected SPP to record user mode")
	}
	if m.Sstatus&riscv.SSTATUS_SPIE == 0 {
		t.Fatal("expected SPIE to save the enabled interrupt state")
	}
	if m.IntrGet() {
		t.Fatal("expected interrupts masked during the trap")
	}
}

func TestSretRestoresModeAndInterrupts(t *testing.T) {
	m := NewMachine(1 << 20)
	m.Sstatus = riscv.SSTATUS_SPIE // SPP=0: back to user
	m.Sepc = 0x8000

	m.Sret()

	if m.Mode != UMODE {
		t.Fatal("expected user mode after sret")
	}
	if m.PC != 0x8000 {
		t.Fatalf("expected pc 8000; got %x", m.PC)
	}
	if !m.IntrGet() {
		t.Fatal("expected SPIE to re-enable interrupts")
	}
}

func TestFlushTLBObservable(t *testing.T) {
	m := NewMachine(1 << 20)
	before := m.TLBFlushes()
	m.FlushTLB()
	if m.TLBFlushes() != before+1 {
		t.Fatal("expected flush generation to advance")
	}
}
