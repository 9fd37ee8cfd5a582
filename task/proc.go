package task

import "sync/atomic"

import "github.com/sasdallas/Ethereal-sub004/defs"
import "github.com/sasdallas/Ethereal-sub004/spinlock"

type Proc_t struct {
	Pid  int
	Pgid int
	Sid  int
	Name string

	mainthr *Thread_t
	// thread list; protected by tlock
	threads []*Thread_t
	tlock   *spinlock.Lock_t

	// protects every thread's signal state and the exit fields below
	siglock *spinlock.Lock_t

	// user trampoline region base; 0 until first user handler fires
	tramp uintptr

	exitstatus int
	exitreason int
	// a process is marked doomed when it has been killed but may have
	// threads still queued on another cpu
	doomed     bool
	terminated bool

	parent *Proc_t
	// waitinfo for my child processes and threads
	Mywait Wait_t
	// waitinfo of my parent
	Pwait *Wait_t

	Ptrace Ptrace_t

	itimer itimer_t

	core *Core_t
}

// Proc_new creates a process with its main thread. the parent may be nil
// (kernel/init processes).
func (c *Core_t) Proc_new(name string, parent *Proc_t, pgid int) (*Proc_t, bool) {
	pid := int(atomic.AddInt32(&c.idseq, 1))
	if _, ok := c.Ptable.Get(pid); ok {
		panic("pid exists")
	}
	p := &Proc_t{
		Pid:     pid,
		Pgid:    pgid,
		Name:    name,
		parent:  parent,
		tlock:   spinlock.Mklock(c.Mach, "threads"),
		siglock: spinlock.Mklock(c.Mach, "sig"),
		core:    c,
	}
	if pgid == 0 {
		p.Pgid = pid
	}
	p.Mywait.Wait_init(c, pid)
	if parent != nil {
		p.Pwait = &parent.Mywait
		if !parent.Mywait._start(pid, true, 1<<20) {
			return nil, false
		}
	}
	p.Ptrace.l = spinlock.Mklock(c.Mach, "ptrace")

	t, ok := c.Thread_new(p, 0)
	if !ok {
		return nil, false
	}
	p.mainthr = t
	c.Ptable.Set(pid, p)
	return p, true
}

func (p *Proc_t) Mainthread() *Thread_t {
	return p.mainthr
}

func (p *Proc_t) Doomed() bool {
	return p.doomed
}

// Exitinfo returns the exit reason and status.
func (p *Proc_t) Exitinfo() (int, int) {
	return p.exitreason, p.exitstatus
}

func (p *Proc_t) Threadcount() int {
	p.tlock.Acquire()
	n := len(p.threads)
	p.tlock.Release()
	return n
}

// anypending reports whether any thread of p has a deliverable (pending and
// not blocked) signal. called from the sleep tick scan with the sleep list
// lock held, so it only tries the thread list lock; a miss is caught on the
// next tick.
func (p *Proc_t) anypending() bool {
	if !p.tlock.Tryacquire() {
		return false
	}
	ret := false
	for _, t := range p.threads {
		if t.sigpending()&^sigeffblock(t.sigblocked()) != 0 {
			ret = true
			break
		}
	}
	p.tlock.Release()
	return ret
}

// sigeffblock strips the unblockable signals out of a blocked set.
func sigeffblock(blocked uint32) uint32 {
	return blocked &^ (defs.Sigbit(defs.SIGKILL) | defs.Sigbit(defs.SIGSTOP))
}

// Proc_exit terminates p on behalf of self (one of its threads): every other
// thread is doomed and p's status goes to the parent. the caller must not
// resume the thread; use Thread_exit/Trapret to finish it.
func (c *Core_t) Proc_exit(self *Thread_t, p *Proc_t, status, reason int) {
	p.siglock.Acquire()
	if p.doomed {
		p.siglock.Release()
		// another thread already brought the process down; just finish
		// this one
		if self != nil {
			c.thread_reap(self, p.exitstatus)
		}
		return
	}
	p.doomed = true
	p.exitstatus = status
	p.exitreason = reason
	p.siglock.Release()

	// doom the other threads. queued ones are reaped by the scheduler;
	// sleeping ones wake on the next tick and die at trap return. the
	// thread list lock is dropped before touching the sleep list; the
	// tick scan takes those locks in the other order.
	p.tlock.Acquire()
	doom := make([]*Thread_t, 0, len(p.threads))
	for _, t := range p.threads {
		if t != self {
			doom = append(doom, t)
		}
	}
	p.tlock.Release()
	for _, t := range doom {
		t.statusor(defs.THREAD_STOPPING)
		p.siglock.Acquire()
		t.setsigpend(t.sigpending() | defs.Sigbit(defs.SIGKILL))
		p.siglock.Release()
		c.Sleepers.Wakeup(t)
	}

	if self != nil {
		c.thread_reap(self, status)
	}
	c.proc_terminate(p)
}

// proc_terminate sends p's exit status to the parent and unlinks p from the
// process table. runs once.
func (c *Core_t) proc_terminate(p *Proc_t) {
	p.tlock.Acquire()
	if p.terminated {
		p.tlock.Release()
		return
	}
	p.terminated = true
	p.tlock.Release()

	c.Timers.cancel(p)

	if p.Pwait != nil {
		p.Pwait.putpid(p.Pid, p.exitstatus)
		// kick the parent out of any blocking wait
		c.wakeproc(p.parent)
		// prevent deep process trees from consuming unbounded memory
		p.Pwait = nil
	}
	c.Ptable.Del(p.Pid)
}

// wakeproc flips the sleep descriptors of every sleeping thread of p.
func (c *Core_t) wakeproc(p *Proc_t) {
	if p == nil {
		return
	}
	p.tlock.Acquire()
	for _, t := range p.threads {
		c.Sleepers.Wakeup(t)
	}
	p.tlock.Release()
}
