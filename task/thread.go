package task

import "fmt"
import "runtime"
import "sync/atomic"

import "github.com/sasdallas/Ethereal-sub004/defs"
import "github.com/sasdallas/Ethereal-sub004/limits"

// Cond_t is a sleep predicate. it runs from the tick scan with the sleep list
// lock held and must not block.
type Cond_t func(t *Thread_t, ctx interface{}) bool

// Tsleep_t describes why/until-when a thread is blocked. a thread owns at
// most one, created at registration and consumed by Enter exactly once. the
// state field starts as a sleep kind and is overwritten with the wake reason.
type Tsleep_t struct {
	thread  *Thread_t
	state   int
	secs    uint64
	subsecs uint64
	cond    Cond_t
	ctx     interface{}
	next    *Tsleep_t
}

type Sigact_t struct {
	Handler uintptr
	Mask    uint32
	Flags   uint32
}

type Thread_t struct {
	Tid  defs.Tid_t
	Proc *Proc_t
	// status bitmask; use Status/statusor/statusclr
	status uint32
	Flags  uint32

	// signal state; written under Proc.siglock. the pending and blocked
	// sets are also read lock-free by the tick scan, so use the
	// sigpending/sigblocked/setsig* accessors
	sigpend  uint32
	sigblock uint32
	sigacts  [defs.NSIG]Sigact_t

	// owned sleep descriptor; non-nil iff THREAD_SLEEPING is set
	sleep *Tsleep_t

	// run queue and sleep queue linkage
	schednext *Thread_t
	waitnext  *Thread_t

	// threads blocked in join on us
	joinq  *Queue_t
	Retval int
	// exit bookkeeping ran; protected by Proc.tlock
	reaped bool

	// saved trap frame
	Tf [defs.TFSIZE]uintptr

	// dispatch handshake with the executing cpu
	runch   chan int
	yieldch chan int

	core *Core_t
}

func (t *Thread_t) Status() uint32 {
	return atomic.LoadUint32(&t.status)
}

func (t *Thread_t) statusor(b uint32) {
	for {
		o := atomic.LoadUint32(&t.status)
		if atomic.CompareAndSwapUint32(&t.status, o, o|b) {
			return
		}
	}
}

func (t *Thread_t) statusclr(b uint32) {
	for {
		o := atomic.LoadUint32(&t.status)
		if atomic.CompareAndSwapUint32(&t.status, o, o&^b) {
			return
		}
	}
}

func (t *Thread_t) sigpending() uint32 {
	return atomic.LoadUint32(&t.sigpend)
}

func (t *Thread_t) sigblocked() uint32 {
	return atomic.LoadUint32(&t.sigblock)
}

func (t *Thread_t) setsigpend(v uint32) {
	atomic.StoreUint32(&t.sigpend, v)
}

func (t *Thread_t) setsigblock(v uint32) {
	atomic.StoreUint32(&t.sigblock, v)
}

// park gives up the cpu and blocks until a scheduler dispatches us again. a
// negative dispatch token means the thread was destroyed while parked.
func (t *Thread_t) park() {
	t.yieldch <- 1
	if v := <-t.runch; v < 0 {
		runtime.Goexit()
	}
}

// total number of threads, system wide
func (c *Core_t) tid_new() (defs.Tid_t, bool) {
	if atomic.AddInt64(&c.nthreads, 1) > int64(limits.Syslimit.Sysprocs) {
		atomic.AddInt64(&c.nthreads, -1)
		return 0, false
	}
	return defs.Tid_t(atomic.AddInt32(&c.idseq, 1)), true
}

func (c *Core_t) tid_del() {
	if atomic.AddInt64(&c.nthreads, -1) < 0 {
		panic("neg nthreads")
	}
}

// Thread_new creates a thread of p; the caller starts it with Start. fails
// when the system-wide thread limit is hit.
func (c *Core_t) Thread_new(p *Proc_t, flags uint32) (*Thread_t, bool) {
	tid, ok := c.tid_new()
	if !ok {
		return nil, false
	}
	t := &Thread_t{
		Tid:     tid,
		Proc:    p,
		status:  defs.THREAD_RUNNING,
		Flags:   flags,
		runch:   make(chan int, 1),
		yieldch: make(chan int, 1),
		core:    c,
	}
	t.joinq = c.Sleepers.Mkqueue("joiners")
	if p != nil {
		p.tlock.Acquire()
		p.threads = append(p.threads, t)
		p.tlock.Release()
		if !p.Mywait._start(int(tid), false, uint(limits.Syslimit.Joiners)) {
			panic("silly noproc")
		}
	}
	return t, true
}

// Start spawns the thread body and makes the thread runnable on the calling
// cpu. fn runs only once a cpu dispatches the thread; returning from fn exits
// the thread.
func (c *Core_t) Start(t *Thread_t, fn func(*Thread_t)) {
	go func() {
		if v := <-t.runch; v < 0 {
			return
		}
		fn(t)
		c.Thread_exit(t, 0)
	}()
	c.Scheds.Insert(c.Mach.Cpunum(), t)
}

// Thread_exit terminates the calling thread. never returns.
func (c *Core_t) Thread_exit(t *Thread_t, status int) {
	c.thread_reap(t, status)
	c.thread_finish(t)
}

// thread_reap runs t's exit bookkeeping: status to the joiners and the
// process waitinfo, the system thread count, process teardown when t was the
// last thread. runs at most once per thread; safe from any goroutine.
func (c *Core_t) thread_reap(t *Thread_t, status int) {
	t.Retval = status
	t.statusclr(defs.THREAD_RUNNING)
	t.statusor(defs.THREAD_STOPPING)

	p := t.Proc
	last := false
	if p != nil {
		p.tlock.Acquire()
		if t.reaped {
			p.tlock.Release()
			return
		}
		t.reaped = true
		for i := range p.threads {
			if p.threads[i] == t {
				p.threads = append(p.threads[:i], p.threads[i+1:]...)
				break
			}
		}
		last = len(p.threads) == 0
		p.tlock.Release()
		p.Mywait.puttid(int(t.Tid), status)
	} else {
		if t.reaped {
			return
		}
		t.reaped = true
	}

	t.joinq.Wakeupq(0)
	c.tid_del()

	if last {
		// the last thread's exit status becomes the process's, unless
		// the process was already brought down with its own status
		p.siglock.Acquire()
		if !p.doomed {
			p.exitstatus = status
			p.exitreason = defs.EXIT_NORMAL
		}
		p.siglock.Release()
		c.proc_terminate(p)
	}
}

// thread_finish hands the cpu back and kills the goroutine. must run on the
// thread's own goroutine.
func (c *Core_t) thread_finish(t *Thread_t) {
	t.yieldch <- 1
	runtime.Goexit()
}

// thread_destroy reaps a STOPPING thread found on a run queue. the parked
// goroutine, if any, is told to die.
func (c *Core_t) thread_destroy(t *Thread_t) {
	c.thread_reap(t, t.Retval)
	t.statusor(defs.THREAD_STOPPED)
	select {
	case t.runch <- -1:
	default:
	}
	if sched_debug {
		fmt.Printf("sched: thread %d caught in the scheduler and shut down\n", t.Tid)
	}
}

// Thread_join blocks until the target exits, returning its exit status.
func (c *Core_t) Thread_join(self, target *Thread_t) (int, defs.Err_t) {
	if target == nil || self == target {
		return 0, -defs.EINVAL
	}
	// the sleep is conditioned on the target's status so a wakeup sent
	// between the status check and the enqueue is only a lost tick, not
	// a lost join
	exited := func(_ *Thread_t, ctx interface{}) bool {
		return ctx.(*Thread_t).Status()&
			(defs.THREAD_STOPPING|defs.THREAD_STOPPED) != 0
	}
	for {
		if target.Status()&(defs.THREAD_STOPPING|defs.THREAD_STOPPED) != 0 {
			return target.Retval, 0
		}
		if err := c.Sleepers.Until_cond(self, exited, target); err != 0 {
			return 0, err
		}
		target.joinq.Enqueue(self)
		reason := c.Sleepers.Enter(self)
		target.joinq.Remove(self)
		if reason == defs.WAKEUP_SIGNAL {
			return 0, -defs.EINTR
		}
	}
}

// Yield reinserts the calling thread (unless it is blocking) and gives up the
// cpu until the next dispatch.
func (c *Core_t) Yield(t *Thread_t) {
	st := t.Status()
	if st&defs.THREAD_RUNNING != 0 && st&defs.THREAD_SLEEPING == 0 {
		c.Scheds.Insert(c.Mach.Cpunum(), t)
	}
	t.park()
}
