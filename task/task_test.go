package task

import "testing"
import "unsafe"

import "github.com/sasdallas/Ethereal-sub004/uhal"

func pointerof(p *int32) uintptr {
	return uintptr(unsafe.Pointer(p))
}

// test fixture: a core on the userspace machine. the test goroutine plays
// the cpus, dispatching threads one at a time with Run1 so every interleave
// is explicit.
type tcore struct {
	mach  *uhal.Mach_t
	clock *uhal.Clock_t
	mmu   *uhal.Mmu_t
	umem  *uhal.Usermem_t
	c     *Core_t
}

func mktcore(ncpu int) *tcore {
	tc := &tcore{}
	tc.mach = uhal.Mkmach(ncpu)
	tc.clock = uhal.Mkclock()
	tc.mmu = uhal.Mkmmu()
	tc.umem = uhal.Mkusermem()
	tc.c = Mkcore(tc.mach, tc.clock, tc.mmu, tc.umem, []byte{0xc3})
	return tc
}

// run dispatches on cpu until only idle is left. returns dispatch count.
func (tc *tcore) run(cpu int) int {
	tc.mach.Setcpu(cpu)
	n := 0
	for tc.c.Scheds.Run1(cpu) {
		n++
	}
	return n
}

// step dispatches exactly one thread on cpu; false means idle.
func (tc *tcore) step(cpu int) bool {
	tc.mach.Setcpu(cpu)
	return tc.c.Scheds.Run1(cpu)
}

// tick advances the clock us microseconds and runs the periodic scan.
func (tc *tcore) tick(us uint64) {
	tc.clock.Advance(us)
	tc.c.Tick()
}

// proc makes a process, failing the test instead of returning an error.
func (tc *tcore) proc(t *testing.T, name string, parent *Proc_t) *Proc_t {
	p, ok := tc.c.Proc_new(name, parent, 0)
	if !ok {
		t.Fatalf("proc_new %s failed", name)
	}
	return p
}

// spawn adds a thread to p running fn.
func (tc *tcore) spawn(t *testing.T, p *Proc_t, fn func(*Thread_t)) *Thread_t {
	th, ok := tc.c.Thread_new(p, 0)
	if !ok {
		t.Fatalf("thread_new failed")
	}
	tc.c.Start(th, fn)
	return th
}
