package task

import "sync/atomic"
import "unsafe"

import "github.com/sasdallas/Ethereal-sub004/defs"
import "github.com/sasdallas/Ethereal-sub004/hashtable"
import "github.com/sasdallas/Ethereal-sub004/limits"
import "github.com/sasdallas/Ethereal-sub004/spinlock"

// Futexes_t maps physical addresses of contended words to wait queues.
// keying by physical address makes a word shared across address spaces name
// the same futex.
type Futexes_t struct {
	l     *spinlock.Lock_t
	ht    *hashtable.Hashtable_t
	count int
	core  *Core_t
}

type futex_t struct {
	q *Queue_t
}

func mkfutexes(c *Core_t) *Futexes_t {
	return &Futexes_t{
		l:    spinlock.Mklock(c.Mach, "futex"),
		ht:   hashtable.MkHash(limits.Syslimit.Futexes),
		core: c,
	}
}

// lookup finds or creates the futex for ptr's physical address. caller holds
// f.l.
func (f *Futexes_t) lookup(pa uintptr, create bool) (*futex_t, defs.Err_t) {
	if v, ok := f.ht.Get(pa); ok {
		return v.(*futex_t), 0
	}
	if !create {
		return nil, 0
	}
	if f.count >= limits.Syslimit.Futexes {
		return nil, -defs.ENOMEM
	}
	fu := &futex_t{q: f.core.Sleepers.Mkqueue("futex")}
	f.ht.Set(pa, fu)
	f.count++
	return fu, 0
}

// Futex_wait blocks t until the word at ptr is signaled, provided it still
// holds val. to, when non-nil, bounds the wait. wakeups are re-checked
// against the word so a racing store is never missed.
func (f *Futexes_t) Futex_wait(t *Thread_t, ptr *int32, val int32, to *defs.Timespec_t) defs.Err_t {
	if atomic.LoadInt32(ptr) != val {
		return -defs.EAGAIN
	}

	va := uintptr(unsafe.Pointer(ptr))
	f.l.Acquire()
	pa, ok := f.core.Mmu.Translate(va)
	if !ok {
		f.l.Release()
		return -defs.EFAULT
	}
	for {
		// looked up each iteration: a spurious wake may have let the
		// entry be collected
		fu, err := f.lookup(pa, true)
		if err != 0 {
			f.l.Release()
			return err
		}
		if to != nil {
			err = f.core.Sleepers.Until_time(t, to.Sec, to.Nsec/1000)
		} else {
			err = f.core.Sleepers.Until_never(t)
		}
		if err != 0 {
			f.l.Release()
			return err
		}
		fu.q.Enqueue(t)
		f.l.Release()

		switch f.core.Sleepers.Enter(t) {
		case defs.WAKEUP_SIGNAL:
			fu.q.Remove(t)
			f.gc(pa, fu)
			return -defs.EINTR
		case defs.WAKEUP_TIME:
			fu.q.Remove(t)
			f.gc(pa, fu)
			return -defs.ETIMEDOUT
		}

		f.l.Acquire()
		// a wake raced with a store that put the old value back; keep
		// waiting
		if atomic.LoadInt32(ptr) == val {
			continue
		}
		f.l.Release()
		f.gc(pa, fu)
		return 0
	}
}

// Futex_wakeup wakes up to n waiters on the word at ptr, FIFO. returns how
// many woke. a word nobody waits on is not an error.
func (f *Futexes_t) Futex_wakeup(ptr *int32, n int) (int, defs.Err_t) {
	va := uintptr(unsafe.Pointer(ptr))
	f.l.Acquire()
	pa, ok := f.core.Mmu.Translate(va)
	if !ok {
		f.l.Release()
		return 0, -defs.EFAULT
	}
	fu, _ := f.lookup(pa, false)
	f.l.Release()
	if fu == nil {
		return 0, 0
	}
	return fu.q.Wakeupq(n), 0
}

// gc drops the table entry once the last waiter left.
func (f *Futexes_t) gc(pa uintptr, fu *futex_t) {
	f.l.Acquire()
	if v, ok := f.ht.Get(pa); ok && v.(*futex_t) == fu && fu.q.Len() == 0 {
		f.ht.Del(pa)
		f.count--
	}
	f.l.Release()
}
