// Package hart models the machine this kernel runs on: a single RV64
// hardware thread plus its physical RAM. Privileged state lives in
// exported fields so the rest of the kernel reads and writes it the
// way assembly would read and write CSRs.
package hart

import (
	"encoding/binary"

	"rvos-in-go/kernel/riscv"
)

type Mode int

const (
	UMODE Mode = iota
	SMODE
)

// Hart is one hardware thread: the general-purpose register file plus
// the supervisor CSRs the trap machinery touches.
type Hart struct {
	X  [32]uint64 // x0 stays zero
	PC uint64

	Mode     Mode
	Sstatus  uint64
	Sepc     uint64
	Scause   uint64
	Stval    uint64
	Sscratch uint64
	Satp     uint64
	Stvec    uint64
}

// CodeFn is a kernel routine reachable through a code address. It runs
// to its next control transfer and returns the target address, or 0
// when the hart has left supervisor execution (entered user mode or
// gone idle).
type CodeFn func(m *Machine) uint64

// Machine is a hart plus physical memory. RAM covers
// [KERNBASE, PhysTop).
type Machine struct {
	Hart

	RAM     []byte
	PhysTop uint64

	code       map[uint64]CodeFn
	tlbFlushes uint64
}

func NewMachine(ramBytes int) *Machine {
	if uint64(ramBytes)%riscv.PGSIZE != 0 {
		panic("NewMachine: ram size not page aligned")
	}
	m := &Machine{
		RAM:     make([]byte, ramBytes),
		PhysTop: riscv.KERNBASE + uint64(ramBytes),
		code:    make(map[uint64]CodeFn),
	}
	m.Mode = SMODE
	return m
}

func (m *Machine) ReadPhys64(pa uint64) uint64 {
	if pa < riscv.KERNBASE || pa+8 > m.PhysTop {
		panic("ReadPhys64")
	}
	return binary.LittleEndian.Uint64(m.RAM[pa-riscv.KERNBASE:])
}

func (m *Machine) WritePhys64(pa uint64, v uint64) {
	if pa < riscv.KERNBASE || pa+8 > m.PhysTop {
		panic("WritePhys64")
	}
	binary.LittleEndian.PutUint64(m.RAM[pa-riscv.KERNBASE:], v)
}

// Phys returns the RAM window [pa, pa+n).
func (m *Machine) Phys(pa uint64, n uint64) []byte {
	if pa < riscv.KERNBASE || pa+n > m.PhysTop {
		panic("Phys")
	}
	return m.RAM[pa-riscv.KERNBASE : pa-riscv.KERNBASE+n]
}

// RegisterCode binds a code address to a kernel routine. Registering
// the same address twice is a programming error.
func (m *Machine) RegisterCode(va uint64, fn CodeFn) {
	if _, ok := m.code[va]; ok {
		panic("RegisterCode: remap")
	}
	m.code[va] = fn
}

func (m *Machine) CodeAt(va uint64) CodeFn { return m.code[va] }

// Exec runs the continuation at target and keeps following returned
// targets until a routine reports 0. This is the explicit dispatch
// loop standing in for ra/stvec-driven transfers.
func (m *Machine) Exec(target uint64) {
	for target != 0 {
		fn := m.code[target]
		if fn == nil {
			panic("Exec: jump to unregistered address")
		}
		target = fn(m)
	}
}

// TakeTrap performs what hardware does on a trap: stashes the pc and
// cause, saves and masks the interrupt state in sstatus, raises the
// privilege, and transfers to stvec.
func (m *Machine) TakeTrap(scause, stval uint64) {
	m.Sepc = m.PC
	m.Scause = scause
	m.Stval = stval

	if m.Mode == SMODE {
		m.Sstatus |= riscv.SSTATUS_SPP
	} else {
		m.Sstatus &= ^uint64(riscv.SSTATUS_SPP)
	}
	if m.Sstatus&riscv.SSTATUS_SIE != 0 {
		m.Sstatus |= riscv.SSTATUS_SPIE
	} else {
		m.Sstatus &= ^uint64(riscv.SSTATUS_SPIE)
	}
	m.Sstatus &= ^uint64(riscv.SSTATUS_SIE)

	m.Mode = SMODE
	m.Exec(m.Stvec)
}

// Sret executes the privileged return: privilege and interrupt enable
// come back from sstatus, the pc from sepc.
func (m *Machine) Sret() {
	if m.Sstatus&riscv.SSTATUS_SPP == 0 {
		m.Mode = UMODE
	} else {
		m.Mode = SMODE
	}
	if m.Sstatus&riscv.SSTATUS_SPIE != 0 {
		m.Sstatus |= riscv.SSTATUS_SIE
	} else {
		m.Sstatus &= ^uint64(riscv.SSTATUS_SIE)
	}
	m.Sstatus |= riscv.SSTATUS_SPIE
	m.Sstatus &= ^uint64(riscv.SSTATUS_SPP)
	m.PC = m.Sepc
}

// FlushTLB models sfence.vma: translation is always performed against
// the live satp, so flushing only has to be observable.
func (m *Machine) FlushTLB() { m.tlbFlushes++ }

func (m *Machine) TLBFlushes() uint64 { return m.tlbFlushes }

func (m *Machine) IntrOn()  { m.Sstatus |= riscv.SSTATUS_SIE }
func (m *Machine) IntrOff() { m.Sstatus &= ^uint64(riscv.SSTATUS_SIE) }

func (m *Machine) IntrGet() bool { return m.Sstatus&riscv.SSTATUS_SIE != 0 }
