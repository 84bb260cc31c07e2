package vm

import (
	"testing"

	"rvos-in-go/kernel/hart"
	"rvos-in-go/kernel/mem"
	"rvos-in-go/kernel/riscv"
)

func bootVM(t *testing.T) *hart.Machine {
	t.Helper()
	m := hart.NewMachine(1 << 22)
	mem.Kinit(m, riscv.KEND, m.PhysTop)
	KVMInit(m)
	KVMInitHart(m)
	return m
}

func TestKernelIdentityMapping(t *testing.T) {
	m := bootVM(t)

	va := riscv.KEND + 123
	pa, err := Translate(m, KernelPagetable(), va)
	if err != nil {
		t.Fatal(err)
	}
	if pa != va {
		t.Fatalf("expected identity mapping %x; got %x", va, pa)
	}
}

func TestKernelTrampolineMapping(t *testing.T) {
	m := bootVM(t)

	pa, err := Translate(m, KernelPagetable(), riscv.TRAMPOLINE)
	if err != nil {
		t.Fatal(err)
	}
	if pa != riscv.STRAMPOLINE {
		t.Fatalf("expected trampoline at %x; got %x", riscv.STRAMPOLINE, pa)
	}
}

func TestMapPagesAndTranslate(t *testing.T) {
	m := bootVM(t)

	frame := mem.Kalloc(m)
	va := uint64(0x40000000)
	if err := MapPages(m, KernelPagetable(), va, riscv.PGSIZE, frame, riscv.PTE_R|riscv.PTE_W); err != nil {
		t.Fatal(err)
	}

	pa, err := Translate(m, KernelPagetable(), va+17)
	if err != nil {
		t.Fatal(err)
	}
	if pa != frame+17 {
		t.Fatalf("expected %x; got %x", frame+17, pa)
	}

	Write64(m, va+8, 0xabcd)
	if got := m.ReadPhys64(frame + 8); got != 0xabcd {
		t.Fatalf("expected write through mapping; got %x", got)
	}
}

func TestTranslateMiss(t *testing.T) {
	m := bootVM(t)

	if _, err := Translate(m, KernelPagetable(), 0x40000000); err != errNotMapped {
		t.Fatalf("expected errNotMapped; got %v", err)
	}
}

func TestRemapPanics(t *testing.T) {
	m := bootVM(t)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on remap")
		}
	}()
	MapPages(m, KernelPagetable(), riscv.KERNBASE, riscv.PGSIZE, riscv.KERNBASE, riscv.PTE_R)
}

func TestUserSpaceSharesTrampoline(t *testing.T) {
	m := bootVM(t)

	as, err := NewUserSpace(m)
	if err != nil {
		t.Fatal(err)
	}

	pte := PTE(m, as.Pagetable, riscv.TRAMPOLINE)
	if pte&riscv.PTE_V == 0 {
		t.Fatal("trampoline not mapped in user space")
	}
	if riscv.PTE2PA(pte) != riscv.STRAMPOLINE {
		t.Fatal("user trampoline maps a different physical page than the kernel's")
	}
	if pte&riscv.PTE_U != 0 {
		t.Fatal("trampoline must not be directly addressable from user code")
	}
	if pte&riscv.PTE_W != 0 {
		t.Fatal("trampoline must not be writable")
	}
}

func TestUserSpaceTrapframe(t *testing.T) {
	m := bootVM(t)

	as, err := NewUserSpace(m)
	if err != nil {
		t.Fatal(err)
	}

	pte := PTE(m, as.Pagetable, riscv.TRAPFRAME)
	if pte&riscv.PTE_V == 0 {
		t.Fatal("trapframe not mapped")
	}
	if riscv.PTE2PA(pte) != as.TrapframePA {
		t.Fatal("trapframe mapping does not match TrapframePA")
	}
	if pte&riscv.PTE_U != 0 {
		t.Fatal("trapframe belongs to the kernel, not user code")
	}

	// two spaces must not share trap contexts
	as2, err := NewUserSpace(m)
	if err != nil {
		t.Fatal(err)
	}
	if as2.TrapframePA == as.TrapframePA {
		t.Fatal("trapframe page shared between address spaces")
	}
}

func TestMapProgramAndCopyIn(t *testing.T) {
	m := bootVM(t)

	as, err := NewUserSpace(m)
	if err != nil {
		t.Fatal(err)
	}

	data := make([]byte, int(riscv.PGSIZE)+100)
	for i := range data {
		data[i] = byte(i)
	}
	if err := as.MapProgram(m, data); err != nil {
		t.Fatal(err)
	}

	got := make([]byte, len(data))
	if err := CopyIn(m, as.Pagetable, got, riscv.USERBASE); err != nil {
		t.Fatal(err)
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("byte %d: expected %d; got %d", i, data[i], got[i])
		}
	}
}

func TestCopyInRejectsKernelPages(t *testing.T) {
	m := bootVM(t)

	as, err := NewUserSpace(m)
	if err != nil {
		t.Fatal(err)
	}

	var b [8]byte
	if err := CopyIn(m, as.Pagetable, b[:], riscv.TRAMPOLINE); err == nil {
		t.Fatal("user pointer into the trampoline must be rejected")
	}
	if err := CopyIn(m, as.Pagetable, b[:], riscv.MAXVA+riscv.PGSIZE); err == nil {
		t.Fatal("user pointer beyond the virtual range must be rejected")
	}
}

func TestMapUserStack(t *testing.T) {
	m := bootVM(t)

	as, err := NewUserSpace(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := as.MapProgram(m, make([]byte, 100)); err != nil {
		t.Fatal(err)
	}
	if err := as.MapUserStack(m); err != nil {
		t.Fatal(err)
	}

	// stack top is mapped, the guard page below the stack is not
	if _, err := Translate(m, as.Pagetable, as.StackTop-8); err != nil {
		t.Fatal("stack not mapped at its top")
	}
	guard := as.StackTop - USERSTACK*riscv.PGSIZE - riscv.PGSIZE
	if _, err := Translate(m, as.Pagetable, guard); err == nil {
		t.Fatal("guard page must stay unmapped")
	}
}

func TestAddressSpaceFreeReturnsPages(t *testing.T) {
	m := bootVM(t)

	free := countFree(m)

	as, err := NewUserSpace(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := as.MapProgram(m, make([]byte, 3000)); err != nil {
		t.Fatal(err)
	}
	if err := as.MapUserStack(m); err != nil {
		t.Fatal(err)
	}
	as.Free(m)

	if got := countFree(m); got != free {
		t.Fatalf("expected %d free pages after teardown; got %d", free, got)
	}
}

// countFree drains and refills the allocator.
func countFree(m *hart.Machine) int {
	var pages []uint64
	for {
		pa := mem.Kalloc(m)
		if pa == 0 {
			break
		}
		pages = append(pages, pa)
	}
	for i := len(pages) - 1; i >= 0; i-- {
		mem.Kfree(m, pages[i])
	}
	return len(pages)
}
