// Package task is the scheduling and synchronization core: per-cpu run
// queues with work stealing, the generic sleep subsystem, signal delivery,
// futexes, and the process/thread model they hang off. the architecture
// layer is consumed through the hal interfaces; nothing here is a hidden
// singleton -- all state is owned by a Core_t.
package task

import "github.com/sasdallas/Ethereal-sub004/hal"
import "github.com/sasdallas/Ethereal-sub004/hashtable"
import "github.com/sasdallas/Ethereal-sub004/limits"

type Core_t struct {
	Mach  hal.Mach_i
	Clock hal.Clock_i
	Mmu   hal.Mmu_i
	Umem  hal.Usermem_i
	// signal trampoline template copied into each process once
	Tramp []byte

	Scheds   *Scheds_t
	Sleepers *Sleepers_t
	Futexes  *Futexes_t
	Ptable   *Ptable_t
	Timers   *Timers_t

	nthreads int64
	idseq    int32
}

func Mkcore(m hal.Mach_i, clk hal.Clock_i, mmu hal.Mmu_i, um hal.Usermem_i, tramp []byte) *Core_t {
	c := &Core_t{Mach: m, Clock: clk, Mmu: mmu, Umem: um, Tramp: tramp}
	c.Sleepers = mksleepers(c)
	c.Scheds = mkscheds(c, m.Ncpu())
	c.Futexes = mkfutexes(c)
	c.Timers = mktimers(c)
	c.Ptable = &Ptable_t{ht: hashtable.MkHash(limits.Syslimit.Sysprocs)}
	return c
}

// Tick is the periodic timer callback: scan sleepers, then interval timers.
func (c *Core_t) Tick() {
	c.Sleepers.Tick()
	c.Timers.Tick()
}

// Trapret runs signal dispatch on the way back from a trap. a return of 2
// means the process died and the thread must not resume; the thread is
// finished here and the call never returns in that case.
func (c *Core_t) Trapret(t *Thread_t) int {
	rc := c.Signal_handle(t, &t.Tf)
	if rc == 2 {
		c.thread_finish(t)
	}
	return rc
}

type Ptable_t struct {
	ht *hashtable.Hashtable_t
}

func (pt *Ptable_t) Get(pid int) (*Proc_t, bool) {
	ret, ok := pt.ht.Get(pid)
	if ok {
		return ret.(*Proc_t), true
	}
	return nil, false
}

func (pt *Ptable_t) Set(pid int, p *Proc_t) {
	pt.ht.Set(pid, p)
}

func (pt *Ptable_t) Del(pid int) {
	pt.ht.Del(pid)
}

// Iter may execute concurrently with other lookups, inserts, and deletes
func (pt *Ptable_t) Iter(f func(int, *Proc_t) bool) {
	pt.ht.Iter(func(key, value interface{}) bool {
		return f(key.(int), value.(*Proc_t))
	})
}
