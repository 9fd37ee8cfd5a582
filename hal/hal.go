// Package hal names the architecture services the task core consumes. the
// kernel proper provides real ports; uhal provides a userspace port so the
// core runs under go test.
package hal

// interrupt states
const (
	INTS_DISABLED = 0
	INTS_ENABLED  = 1
)

// Mach_i is the per-cpu view of the machine: interrupt masking, cpu identity
// and the spin hint. Setintstate/Intstate act on the calling cpu only.
type Mach_i interface {
	Intstate() int
	Setintstate(st int)
	Cpunum() int
	Ncpu() int
	Pause()
}

// ipi destination flags
const (
	IPI_EXCLUDE_SELF = 1 << 0
	IPI_BROADCAST    = 1 << 1
)

// Ipi_i sends inter-processor interrupts through the local interrupt
// controller. lapic ids are controller ids, not cpu numbers.
type Ipi_i interface {
	Sendinit(lapicid int)
	Sendstartup(lapicid int, page uintptr)
	Sendnmi(lapicid int)
	Sendipi(vec int, flags int)
	// Ipierr returns the controller error status register, 0 when clean.
	Ipierr() int
}

// Mmu_i translates virtual addresses and invalidates local TLB entries.
type Mmu_i interface {
	Translate(va uintptr) (uintptr, bool)
	Invlpg(va uintptr)
}

// Clock_i is the tick clock: wall time in seconds/subseconds and relative
// deadline arithmetic. subseconds wrap at Subsecmax.
type Clock_i interface {
	Now() (uint64, uint64)
	Relative(secs, subsecs uint64) (uint64, uint64)
	Subsecmax() uint64
}

// Usermem_i touches user address space on behalf of the signal dispatcher:
// mapping the per-process trampoline region and pushing words on a user
// stack. both may fail when the address space is gone.
type Usermem_i interface {
	Maptramp(pid int, blob []byte) (uintptr, bool)
	Pushuser(sp uintptr, v uintptr) (uintptr, bool)
}

// Bootmem_i provides the low physical page for the AP bootstrap blob and
// private AP stacks during bring-up.
type Bootmem_i interface {
	Copybootstrap(page uintptr, blob []byte)
	Allocapstack() uintptr
}
