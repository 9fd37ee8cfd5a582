package task

import "github.com/sasdallas/Ethereal-sub004/defs"
import "github.com/sasdallas/Ethereal-sub004/spinlock"

// Ptrace_t is the per-process tracing state. a process has at most one
// tracer; the tracer observes stops through its waitinfo like any parent.
type Ptrace_t struct {
	l      *spinlock.Lock_t
	tracer *Proc_t
	// stop the tracee at its next syscall entry
	sysstop bool
	// signal that caused the last stop, for the tracer to query
	lastsig int
}

func (pt *Ptrace_t) Tracer() *Proc_t {
	pt.l.Acquire()
	t := pt.tracer
	pt.l.Release()
	return t
}

func (pt *Ptrace_t) Lastsig() int {
	pt.l.Acquire()
	s := pt.lastsig
	pt.l.Release()
	return s
}

// notify records the stop signal and kicks the tracer out of any blocking
// wait. called from the stop path with no locks held.
func (pt *Ptrace_t) notify(c *Core_t, p *Proc_t, sig int) {
	pt.l.Acquire()
	tr := pt.tracer
	if tr != nil {
		pt.lastsig = sig
	}
	pt.l.Release()
	if tr != nil {
		c.wakeproc(tr)
	}
}

// Ptrace_traceme marks the caller traced by its parent.
func (c *Core_t) Ptrace_traceme(p *Proc_t) defs.Err_t {
	if p.parent == nil {
		return -defs.EPERM
	}
	pt := &p.Ptrace
	pt.l.Acquire()
	if pt.tracer != nil {
		pt.l.Release()
		return -defs.EPERM
	}
	pt.tracer = p.parent
	pt.l.Release()
	return 0
}

// Ptrace_attach makes tracer trace target and stops it.
func (c *Core_t) Ptrace_attach(tracer, target *Proc_t) defs.Err_t {
	if tracer == target {
		return -defs.EPERM
	}
	pt := &target.Ptrace
	pt.l.Acquire()
	if pt.tracer != nil {
		pt.l.Release()
		return -defs.EPERM
	}
	pt.tracer = tracer
	pt.l.Release()
	return c.Signal_send(target, defs.SIGSTOP)
}

// tracecheck validates that tracer really traces target.
func (pt *Ptrace_t) tracecheck(tracer *Proc_t) defs.Err_t {
	pt.l.Acquire()
	ok := pt.tracer == tracer
	pt.l.Release()
	if !ok {
		return -defs.EPERM
	}
	return 0
}

// Ptrace_cont resumes a stopped tracee, optionally delivering sig on the way
// out.
func (c *Core_t) Ptrace_cont(tracer, target *Proc_t, sig int) defs.Err_t {
	pt := &target.Ptrace
	if err := pt.tracecheck(tracer); err != 0 {
		return err
	}
	if sig != 0 {
		if err := c.Signal_send(target, sig); err != 0 {
			return err
		}
	}
	return c.Signal_send(target, defs.SIGCONT)
}

// Ptrace_syscall resumes the tracee and stops it again at its next syscall
// entry.
func (c *Core_t) Ptrace_syscall(tracer, target *Proc_t) defs.Err_t {
	pt := &target.Ptrace
	if err := pt.tracecheck(tracer); err != 0 {
		return err
	}
	pt.l.Acquire()
	pt.sysstop = true
	pt.l.Release()
	return c.Signal_send(target, defs.SIGCONT)
}

// Syscall_enter is the syscall entry hook: a tracee with a pending syscall
// stop request gets stopped here, before the syscall runs.
func (c *Core_t) Syscall_enter(t *Thread_t) {
	p := t.Proc
	if p == nil {
		return
	}
	pt := &p.Ptrace
	pt.l.Acquire()
	hit := pt.tracer != nil && pt.sysstop
	if hit {
		pt.sysstop = false
	}
	pt.l.Release()
	if hit {
		c.Signal_sendthread(t, defs.SIGSTOP)
		c.Trapret(t)
	}
}

// Ptrace_getregs copies the tracee's main thread trap frame.
func (c *Core_t) Ptrace_getregs(tracer, target *Proc_t, regs *[defs.TFSIZE]uintptr) defs.Err_t {
	pt := &target.Ptrace
	if err := pt.tracecheck(tracer); err != 0 {
		return err
	}
	mt := target.Mainthread()
	if mt == nil || mt.Status()&defs.THREAD_STOPPED == 0 {
		return -defs.EBUSY
	}
	*regs = mt.Tf
	return 0
}

// Ptrace_setregs overwrites the tracee's main thread trap frame.
func (c *Core_t) Ptrace_setregs(tracer, target *Proc_t, regs *[defs.TFSIZE]uintptr) defs.Err_t {
	pt := &target.Ptrace
	if err := pt.tracecheck(tracer); err != 0 {
		return err
	}
	mt := target.Mainthread()
	if mt == nil || mt.Status()&defs.THREAD_STOPPED == 0 {
		return -defs.EBUSY
	}
	mt.Tf = *regs
	return 0
}

// Ptrace_detach releases the tracee and lets it run.
func (c *Core_t) Ptrace_detach(tracer, target *Proc_t) defs.Err_t {
	pt := &target.Ptrace
	if err := pt.tracecheck(tracer); err != 0 {
		return err
	}
	pt.l.Acquire()
	pt.tracer = nil
	pt.sysstop = false
	pt.lastsig = 0
	pt.l.Release()
	return c.Signal_send(target, defs.SIGCONT)
}
