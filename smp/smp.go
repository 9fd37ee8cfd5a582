// Package smp brings up and tears down the secondary cpus and runs the
// cross-cpu maintenance that needs every core's attention: TLB shootdowns
// and NMI shutdown. the interrupt controller and boot memory are reached
// through the hal interfaces.
package smp

import "fmt"
import "sync/atomic"

import "github.com/sasdallas/Ethereal-sub004/defs"
import "github.com/sasdallas/Ethereal-sub004/hal"
import "github.com/sasdallas/Ethereal-sub004/spinlock"
import "github.com/sasdallas/Ethereal-sub004/task"

// low physical page the AP bootstrap blob is copied to
const Bootpage uintptr = 0x8000

// bounded spins while polling a remote cpu
const polls int = 1000000

type Smp_t struct {
	core *task.Core_t
	ipi  hal.Ipi_i
	boot hal.Bootmem_i
	// cpu number to local apic id
	lapic []int

	// set by the starting AP, polled by the bsp
	apflag uint32

	// shootdown mailbox; one shootdown in flight at a time
	shootlk   *spinlock.Lock_t
	shootva   uintptr
	shootn    int
	shootacks int32

	// per-cpu shutdown acks
	nmiacks []uint32
}

func Mksmp(c *task.Core_t, ipi hal.Ipi_i, boot hal.Bootmem_i, lapic []int) *Smp_t {
	if len(lapic) != c.Mach.Ncpu() {
		panic("lapic map does not cover the cpus")
	}
	return &Smp_t{
		core:    c,
		ipi:     ipi,
		boot:    boot,
		lapic:   lapic,
		shootlk: spinlock.Mklock(c.Mach, "tlbshoot"),
		nmiacks: make([]uint32, c.Mach.Ncpu()),
	}
}

// Start_aps brings the secondaries online one at a time: bootstrap blob to
// low memory, a private stack, INIT then STARTUP, then wait for the AP to
// check in before touching the bootstrap page for the next one.
func (s *Smp_t) Start_aps(blob []byte) defs.Err_t {
	for cpu := 1; cpu < s.core.Mach.Ncpu(); cpu++ {
		atomic.StoreUint32(&s.apflag, 0)
		s.boot.Copybootstrap(Bootpage, blob)
		if s.boot.Allocapstack() == 0 {
			return -defs.ENOMEM
		}
		s.ipi.Sendinit(s.lapic[cpu])
		s.delay()
		s.ipi.Sendstartup(s.lapic[cpu], Bootpage)
		for atomic.LoadUint32(&s.apflag) == 0 {
			s.core.Mach.Pause()
		}
	}
	return 0
}

// Ap_entry is the first call an AP makes once the bootstrap hands over:
// report in so the bsp can reuse the boot page, then join the scheduler.
func (s *Smp_t) Ap_entry(cpu int) {
	atomic.StoreUint32(&s.apflag, 1)
	s.core.Scheds.Setactive(cpu, true)
}

func (s *Smp_t) delay() {
	for i := 0; i < polls; i++ {
		s.core.Mach.Pause()
	}
}

// Tlb_shootdown invalidates n pages starting at va on every live cpu. the
// caller's own TLB is flushed inline; the rest are interrupted and the call
// spins until each one acknowledges. one shootdown runs at a time.
func (s *Smp_t) Tlb_shootdown(va uintptr, n int) {
	others := 0
	me := s.core.Mach.Cpunum()
	for i := 0; i < s.core.Mach.Ncpu(); i++ {
		if i != me && s.core.Scheds.Cpu(i).Active() {
			others++
		}
	}
	s.invalidate(va, n)
	if others == 0 {
		return
	}
	s.shootlk.Acquire()
	s.shootva = va
	s.shootn = n
	atomic.StoreInt32(&s.shootacks, 0)
	s.ipi.Sendipi(defs.TLBSHOOT, hal.IPI_EXCLUDE_SELF)
	for atomic.LoadInt32(&s.shootacks) < int32(others) {
		s.core.Mach.Pause()
	}
	s.shootlk.Release()
}

// Tlb_handler runs on each interrupted cpu at the shootdown vector.
func (s *Smp_t) Tlb_handler() {
	s.invalidate(s.shootva, s.shootn)
	atomic.AddInt32(&s.shootacks, 1)
}

func (s *Smp_t) invalidate(va uintptr, n int) {
	for i := 0; i < n; i++ {
		s.core.Mmu.Invlpg(va + uintptr(i)<<12)
	}
}

// Disable_cores parks every other cpu with an NMI at shutdown. a cpu that
// never acknowledges is logged and skipped; shutdown proceeds regardless.
func (s *Smp_t) Disable_cores() {
	me := s.core.Mach.Cpunum()
	for cpu := 0; cpu < s.core.Mach.Ncpu(); cpu++ {
		if cpu == me || !s.core.Scheds.Cpu(cpu).Active() {
			continue
		}
		atomic.StoreUint32(&s.nmiacks[cpu], 0)
		s.ipi.Sendnmi(s.lapic[cpu])
		if e := s.ipi.Ipierr(); e != 0 {
			fmt.Printf("smp: nmi to cpu %d failed (esr %#x)\n", cpu, e)
			continue
		}
		ok := false
		for i := 0; i < polls; i++ {
			if atomic.LoadUint32(&s.nmiacks[cpu]) != 0 {
				ok = true
				break
			}
			s.core.Mach.Pause()
		}
		if !ok {
			fmt.Printf("smp: cpu %d did not stop; continuing shutdown\n", cpu)
		}
	}
}

// Nmi_handler runs on a cpu told to stop: leave the scheduler pool,
// acknowledge, and never return to it.
func (s *Smp_t) Nmi_handler(cpu int) {
	s.core.Scheds.Setactive(cpu, false)
	atomic.StoreUint32(&s.nmiacks[cpu], 1)
}
