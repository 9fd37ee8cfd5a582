// Package spinlock is the interrupt-masking mutual exclusion primitive the
// rest of the task core is built on. critical sections run with interrupts
// disabled on the holding cpu and must never sleep.
package spinlock

import "sync/atomic"

import "github.com/sasdallas/Ethereal-sub004/hal"

type Lock_t struct {
	word uint32
	mach hal.Mach_i
	name string
	// owning cpu, -1 when free. diagnostic only.
	Cpu int32
	// interrupt state of the owning cpu before Acquire
	state int
}

func Mklock(m hal.Mach_i, name string) *Lock_t {
	if m == nil {
		panic("no machine")
	}
	return &Lock_t{mach: m, name: name, Cpu: -1}
}

func (l *Lock_t) Acquire() {
	st := l.mach.Intstate()
	l.mach.Setintstate(hal.INTS_DISABLED)
	for atomic.SwapUint32(&l.word, 1) != 0 {
		l.mach.Pause()
	}
	l.state = st
	atomic.StoreInt32(&l.Cpu, int32(l.mach.Cpunum()))
}

// Tryacquire is the non-blocking variant; on failure the interrupt state is
// restored and the caller holds nothing.
func (l *Lock_t) Tryacquire() bool {
	st := l.mach.Intstate()
	l.mach.Setintstate(hal.INTS_DISABLED)
	if atomic.SwapUint32(&l.word, 1) != 0 {
		l.mach.Setintstate(st)
		return false
	}
	l.state = st
	atomic.StoreInt32(&l.Cpu, int32(l.mach.Cpunum()))
	return true
}

func (l *Lock_t) Release() {
	st := l.state
	atomic.StoreInt32(&l.Cpu, -1)
	atomic.StoreUint32(&l.word, 0)
	l.mach.Setintstate(st)
}
