package task

import "fmt"
import "sync/atomic"

import "github.com/sasdallas/Ethereal-sub004/defs"
import "github.com/sasdallas/Ethereal-sub004/spinlock"

const sched_debug bool = false

// Cpu_t is one cpu's scheduler: a FIFO run queue, its spinlock, the activity
// flag, and the idle thread fallback. Cur is the thread the cpu is executing.
type Cpu_t struct {
	Num  int
	head *Thread_t
	tail *Thread_t
	// queue length, readable without the lock by the steal scan
	qlen   int32
	l      *spinlock.Lock_t
	active uint32
	Idle   *Thread_t
	Cur    *Thread_t
}

func (s *Cpu_t) Active() bool {
	return atomic.LoadUint32(&s.active) != 0
}

func (s *Cpu_t) Qlen() int {
	return int(atomic.LoadInt32(&s.qlen))
}

// queue ops; caller holds s.l
func (s *Cpu_t) push(t *Thread_t) {
	t.schednext = nil
	if s.tail != nil {
		s.tail.schednext = t
	} else {
		s.head = t
	}
	s.tail = t
	atomic.AddInt32(&s.qlen, 1)
}

func (s *Cpu_t) pop() *Thread_t {
	t := s.head
	if t == nil {
		return nil
	}
	s.head = t.schednext
	if s.head == nil {
		s.tail = nil
	}
	t.schednext = nil
	atomic.AddInt32(&s.qlen, -1)
	return t
}

type Scheds_t struct {
	cpus []*Cpu_t
	core *Core_t
}

func mkscheds(c *Core_t, ncpu int) *Scheds_t {
	if ncpu < 1 {
		panic("no cpus")
	}
	ss := &Scheds_t{core: c}
	ss.cpus = make([]*Cpu_t, ncpu)
	for i := range ss.cpus {
		s := &Cpu_t{Num: i}
		s.l = spinlock.Mklock(c.Mach, "sched")
		idle, ok := c.Thread_new(nil, defs.THREAD_KERNEL)
		if !ok {
			panic("no idle thread")
		}
		s.Idle = idle
		ss.cpus[i] = s
	}
	// the boot cpu schedules from the start; secondaries join at bring-up
	ss.cpus[0].active = 1
	return ss
}

func (ss *Scheds_t) Cpu(num int) *Cpu_t {
	return ss.cpus[num]
}

func (ss *Scheds_t) Setactive(num int, on bool) {
	var v uint32
	if on {
		v = 1
	}
	atomic.StoreUint32(&ss.cpus[num].active, v)
}

// Insert queues t on cpu num. inserting into an inactive scheduler is
// corruption, not a recoverable error.
func (ss *Scheds_t) Insert(num int, t *Thread_t) {
	s := ss.cpus[num]
	if !s.Active() {
		panic("insert on inactive scheduler")
	}
	s.l.Acquire()
	s.push(t)
	s.l.Release()
}

// Get pops the next runnable thread for cpu num: local queue head, else one
// stolen from the ACTIVE cpu with the strictly longest queue, else the idle
// thread. at most one local and one remote lock are ever held, never both.
// STOPPING threads are destroyed and skipped; a STOPPED thread on a queue is
// fatal.
func (ss *Scheds_t) Get(num int) *Thread_t {
	s := ss.cpus[num]
	for {
		var t *Thread_t
		if s.Active() {
			s.l.Acquire()
			t = s.pop()
			s.l.Release()
			if t == nil {
				t = ss.steal(num)
			}
		}
		if t == nil {
			return s.Idle
		}
		if t.Status()&defs.THREAD_STOPPING != 0 {
			ss.core.thread_destroy(t)
			continue
		}
		if t.Status()&defs.THREAD_STOPPED != 0 {
			panic(fmt.Sprintf("stopped thread %d on a run queue", t.Tid))
		}
		return t
	}
}

// steal takes the head of the busiest other ACTIVE queue. the local lock is
// already released; queue lengths are read unlocked and the victim's queue is
// re-checked under its lock (an emptied victim is absorbed, not an error).
func (ss *Scheds_t) steal(num int) *Thread_t {
	var victim *Cpu_t
	best := 0
	for _, r := range ss.cpus {
		if r.Num == num || !r.Active() {
			continue
		}
		if l := r.Qlen(); l > best {
			best = l
			victim = r
		}
	}
	if victim == nil {
		return nil
	}
	victim.l.Acquire()
	t := victim.pop()
	victim.l.Release()
	return t
}

// Run1 dispatches one thread on cpu num and waits for it to yield back.
// returns false when only the idle thread was runnable.
func (ss *Scheds_t) Run1(num int) bool {
	s := ss.cpus[num]
	t := ss.Get(num)
	if t == s.Idle {
		return false
	}
	s.Cur = t
	t.runch <- 1
	<-t.yieldch
	s.Cur = nil
	return true
}
