// Package kernel wires the task core, the smp layer and a hal port into one
// bootable object. the userspace port stands in for real hardware; a real
// port supplies its own hal implementations and calls the same entry points
// from its interrupt stubs.
package kernel

import "github.com/sasdallas/Ethereal-sub004/smp"
import "github.com/sasdallas/Ethereal-sub004/task"
import "github.com/sasdallas/Ethereal-sub004/uhal"

type Kernel_t struct {
	Mach  *uhal.Mach_t
	Clock *uhal.Clock_t
	Mmu   *uhal.Mmu_t
	Umem  *uhal.Usermem_t
	Boot  *uhal.Bootmem_t
	Ipi   *uhal.Ipi_t

	Core *task.Core_t
	Smp  *smp.Smp_t
}

// Mkkernel builds a kernel on the userspace machine. tramp is the signal
// return trampoline blob mapped into each process on demand.
func Mkkernel(ncpu int, tramp []byte) *Kernel_t {
	k := &Kernel_t{}
	k.Mach = uhal.Mkmach(ncpu)
	k.Clock = uhal.Mkclock()
	k.Mmu = uhal.Mkmmu()
	k.Umem = uhal.Mkusermem()
	k.Boot = uhal.Mkbootmem()
	k.Ipi = uhal.Mkipi(k.Mach)

	k.Core = task.Mkcore(k.Mach, k.Clock, k.Mmu, k.Umem, tramp)

	lapic := make([]int, ncpu)
	for i := range lapic {
		lapic[i] = i
	}
	k.Smp = smp.Mksmp(k.Core, k.Ipi, k.Boot, lapic)

	k.Ipi.Tlbfn = k.Smp.Tlb_handler
	k.Ipi.Nmifn = k.Smp.Nmi_handler
	k.Ipi.Apfn = k.Smp.Ap_entry
	return k
}

// Tick advances the clock by us microseconds and runs the periodic work.
func (k *Kernel_t) Tick(us uint64) {
	k.Clock.Advance(us)
	k.Core.Tick()
}

// Run drains cpu's run queue, dispatching until only the idle thread is
// left. returns how many dispatches ran.
func (k *Kernel_t) Run(cpu int) int {
	n := 0
	for k.Core.Scheds.Run1(cpu) {
		n++
	}
	return n
}

// Shutdown parks every cpu but the caller.
func (k *Kernel_t) Shutdown() {
	k.Smp.Disable_cores()
}
