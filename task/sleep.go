package task

import "fmt"

import "github.com/sasdallas/Ethereal-sub004/defs"
import "github.com/sasdallas/Ethereal-sub004/spinlock"

// Sleepers_t is the global sleep list. threads register a descriptor, then
// Enter to block; the periodic Tick scan decides who wakes and the reason.
type Sleepers_t struct {
	l    *spinlock.Lock_t
	head *Tsleep_t
	tail *Tsleep_t
	core *Core_t
}

func mksleepers(c *Core_t) *Sleepers_t {
	return &Sleepers_t{l: spinlock.Mklock(c.Mach, "sleep"), core: c}
}

func (sl *Sleepers_t) mksleep(t *Thread_t, state int) (*Tsleep_t, defs.Err_t) {
	if t.sleep != nil {
		return nil, -defs.EBUSY
	}
	s := &Tsleep_t{thread: t, state: state}
	t.sleep = s
	t.statusor(defs.THREAD_SLEEPING)
	return s, 0
}

// Until_never registers an indefinite sleep; only an explicit Wakeup or a
// signal ends it.
func (sl *Sleepers_t) Until_never(t *Thread_t) defs.Err_t {
	_, err := sl.mksleep(t, defs.SLEEP_NOCOND)
	return err
}

// Until_time registers a sleep expiring secs/subsecs from now. subsecs is in
// clock units (see hal.Clock_i.Subsecmax).
func (sl *Sleepers_t) Until_time(t *Thread_t, secs, subsecs uint64) defs.Err_t {
	s, err := sl.mksleep(t, defs.SLEEP_TIME)
	if err != 0 {
		return err
	}
	s.secs, s.subsecs = sl.core.Clock.Relative(secs, subsecs)
	return 0
}

// Until_cond registers a sleep ended when cond(t, ctx) goes true. the
// predicate runs from the tick scan and must not block.
func (sl *Sleepers_t) Until_cond(t *Thread_t, cond Cond_t, ctx interface{}) defs.Err_t {
	s, err := sl.mksleep(t, defs.SLEEP_COND)
	if err != 0 {
		return err
	}
	s.cond = cond
	s.ctx = ctx
	return 0
}

// Enter parks the registered thread until the tick scan (or a direct Wakeup)
// releases it, and returns the wake reason. the descriptor is consumed.
// calling Enter without registering first is tolerated with a warning.
func (sl *Sleepers_t) Enter(t *Thread_t) int {
	s := t.sleep
	if s == nil {
		fmt.Printf("sleep: thread %d entered with nothing registered\n", t.Tid)
		return defs.WAKEUP_ANOTHER_THREAD
	}
	// appended at the tail so one tick releases waiters in the order
	// they went to sleep
	sl.l.Acquire()
	s.next = nil
	if sl.tail != nil {
		sl.tail.next = s
	} else {
		sl.head = s
	}
	sl.tail = s
	sl.l.Release()

	t.park()

	reason := s.state
	t.sleep = nil
	return reason
}

// Wakeup flips t's pending sleep, if any, so the next tick releases it with
// WAKEUP_ANOTHER_THREAD. a sleep already resolved to a wake reason is left
// alone.
func (sl *Sleepers_t) Wakeup(t *Thread_t) {
	sl.l.Acquire()
	if s := t.sleep; s != nil && s.state < defs.WAKEUP_SIGNAL {
		s.state = defs.SLEEP_WAKEUP
	}
	sl.l.Release()
}

// Exit unregisters t's descriptor without blocking. used when the caller
// decides not to sleep after all.
func (sl *Sleepers_t) Exit(t *Thread_t) {
	sl.l.Acquire()
	var prev *Tsleep_t
	for n := sl.head; n != nil; n = n.next {
		if n == t.sleep {
			if prev == nil {
				sl.head = n.next
			} else {
				prev.next = n.next
			}
			if sl.tail == n {
				sl.tail = prev
			}
			break
		}
		prev = n
	}
	sl.l.Release()
	t.sleep = nil
	t.statusclr(defs.THREAD_SLEEPING)
}

// Tick scans the sleep list once: pending signals beat deadlines beat
// condition wakes. woken threads are unlinked and made runnable on the
// current cpu. runs from the timer interrupt; contention skips the scan
// rather than spinning.
func (sl *Sleepers_t) Tick() {
	if !sl.l.Tryacquire() {
		return
	}
	secs, ss := sl.core.Clock.Now()
	var prev *Tsleep_t
	n := sl.head
	for n != nil {
		t := n.thread
		wake := 0
		switch {
		case n.state >= defs.WAKEUP_SIGNAL:
			// woken directly between ticks
			wake = n.state
		case t.Proc != nil && t.Proc.anypending():
			wake = defs.WAKEUP_SIGNAL
		case n.state == defs.SLEEP_WAKEUP:
			wake = defs.WAKEUP_ANOTHER_THREAD
		case n.state == defs.SLEEP_TIME &&
			(n.secs < secs || (n.secs == secs && n.subsecs <= ss)):
			wake = defs.WAKEUP_TIME
		case n.state == defs.SLEEP_COND && n.cond(t, n.ctx):
			wake = defs.WAKEUP_COND
		}
		if wake == 0 {
			prev = n
			n = n.next
			continue
		}
		n.state = wake
		next := n.next
		if prev == nil {
			sl.head = next
		} else {
			prev.next = next
		}
		if sl.tail == n {
			sl.tail = prev
		}
		n.next = nil
		t.statusclr(defs.THREAD_SLEEPING)
		// sleep lock before sched lock is the fixed order
		sl.core.Scheds.Insert(sl.core.Mach.Cpunum(), t)
		n = next
	}
	sl.l.Release()
}

// Queue_t is a wait queue of threads, linked through waitnext, built on the
// sleep subsystem. used for join, futex, and pipe waiters.
type Queue_t struct {
	l    *spinlock.Lock_t
	name string
	head *Thread_t
	tail *Thread_t
	len  int
	s    *Sleepers_t
}

func (sl *Sleepers_t) Mkqueue(name string) *Queue_t {
	return &Queue_t{l: spinlock.Mklock(sl.core.Mach, name), name: name, s: sl}
}

func (q *Queue_t) Len() int {
	q.l.Acquire()
	n := q.len
	q.l.Release()
	return n
}

func (q *Queue_t) append(t *Thread_t) {
	t.waitnext = nil
	if q.tail != nil {
		q.tail.waitnext = t
	} else {
		q.head = t
	}
	q.tail = t
	q.len++
}

// Inqueue registers an indefinite sleep and appends t. the caller must
// Enter next.
func (q *Queue_t) Inqueue(t *Thread_t) defs.Err_t {
	if err := q.s.Until_never(t); err != 0 {
		return err
	}
	q.Enqueue(t)
	return 0
}

// Enqueue appends an already-registered sleeper (e.g. one with a deadline).
func (q *Queue_t) Enqueue(t *Thread_t) {
	q.l.Acquire()
	q.append(t)
	q.l.Release()
}

// Wakeupq pops and wakes up to n waiters in FIFO order; n == 0 wakes all.
// returns how many were woken.
func (q *Queue_t) Wakeupq(n int) int {
	q.l.Acquire()
	cnt := 0
	for q.head != nil && (n == 0 || cnt < n) {
		t := q.head
		q.head = t.waitnext
		if q.head == nil {
			q.tail = nil
		}
		t.waitnext = nil
		q.len--
		q.l.Release()
		q.s.Wakeup(t)
		q.l.Acquire()
		cnt++
	}
	q.l.Release()
	return cnt
}

// Remove unlinks t if still queued; called on interrupted or timed out
// waits.
func (q *Queue_t) Remove(t *Thread_t) bool {
	q.l.Acquire()
	var prev *Thread_t
	for n := q.head; n != nil; n = n.waitnext {
		if n == t {
			if prev == nil {
				q.head = n.waitnext
			} else {
				prev.waitnext = n.waitnext
			}
			if q.tail == n {
				q.tail = prev
			}
			n.waitnext = nil
			q.len--
			q.l.Release()
			return true
		}
		prev = n
	}
	q.l.Release()
	return false
}
