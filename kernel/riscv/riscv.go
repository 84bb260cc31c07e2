package riscv

const PGSIZE = uint64(4096)
const MAXVA = uint64(1) << 38

const (
	PTE_V = 1 << 0 // Valid
	PTE_R = 1 << 1 // Readable
	PTE_W = 1 << 2 // Writable
	PTE_X = 1 << 3 // Executable
	PTE_U = 1 << 4 // User
	PTE_G = 1 << 5 // Global
	PTE_A = 1 << 6 // Accessed
	PTE_D = 1 << 7 // Dirty
)

func PX(level int, va uint64) uint64 { return (va >> (12 + uint64(level)*9)) & 0x1FF }
func PTE2PA(pte uint64) uint64       { return (pte >> 10) << 12 }
func PA2PTE(pa uint64) uint64        { return (pa >> 12) << 10 }

func PGROUNDDOWN(a uint64) uint64 { return a & ^(PGSIZE - 1) }
func PGROUNDUP(a uint64) uint64   { return (a + PGSIZE - 1) & ^(PGSIZE - 1) }

// satp holds the mode in the top four bits and the page table's
// physical page number in the low 44.
const SATP_SV39 = uint64(8) << 60

func MAKE_SATP(pagetable uint64) uint64 { return SATP_SV39 | (pagetable >> 12) }
func SATP2PA(satp uint64) uint64        { return (satp & ((1 << 44) - 1)) << 12 }

// sstatus bits
const (
	SSTATUS_SPP  = 1 << 8 // Previous mode: 1=Supervisor, 0=User
	SSTATUS_SPIE = 1 << 5 // Supervisor Previous Interrupt Enable
	SSTATUS_SIE  = 1 << 1 // Supervisor Interrupt Enable
)

// scause values
const (
	SCAUSE_INTR = uint64(1) << 63

	SCAUSE_ILLEGAL_INSTRUCTION = 2
	SCAUSE_ECALL_U             = 8
	SCAUSE_LOAD_PAGE_FAULT     = 13
	SCAUSE_STORE_PAGE_FAULT    = 15

	SCAUSE_SSI = SCAUSE_INTR | 1 // supervisor software interrupt
	SCAUSE_STI = SCAUSE_INTR | 5 // supervisor timer interrupt
	SCAUSE_SEI = SCAUSE_INTR | 9 // supervisor external interrupt
)

// general-purpose register numbers, x0..x31
const (
	REG_ZERO = 0
	REG_RA   = 1
	REG_SP   = 2
	REG_GP   = 3
	REG_TP   = 4
	REG_T0   = 5
	REG_T1   = 6
	REG_T2   = 7
	REG_S0   = 8
	REG_S1   = 9
	REG_A0   = 10
	REG_A1   = 11
	REG_A2   = 12
	REG_A3   = 13
	REG_A4   = 14
	REG_A5   = 15
	REG_A6   = 16
	REG_A7   = 17
	REG_S2   = 18
	REG_S3   = 19
	REG_S4   = 20
	REG_S5   = 21
	REG_S6   = 22
	REG_S7   = 23
	REG_S8   = 24
	REG_S9   = 25
	REG_S10  = 26
	REG_S11  = 27
	REG_T3   = 28
	REG_T4   = 29
	REG_T5   = 30
	REG_T6   = 31
)
