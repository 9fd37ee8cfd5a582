package task

import "fmt"

import "github.com/sasdallas/Ethereal-sub004/defs"

// action resolves sig to what delivery will do: the thread's explicit
// handler, else the default action. caller holds siglock.
func (t *Thread_t) action(sig int) uintptr {
	h := t.sigacts[sig].Handler
	if h == defs.SIG_DFL {
		h = defs.Sigdfl[sig]
		if h == defs.SIG_DFL {
			panic(fmt.Sprintf("signal %d with no default action", sig))
		}
	}
	return h
}

// Sigaction installs a handler for sig on t and returns the old one.
// SIGKILL and SIGSTOP cannot be reassigned.
func (c *Core_t) Sigaction(t *Thread_t, sig int, act Sigact_t) (Sigact_t, defs.Err_t) {
	if sig <= 0 || sig >= defs.NSIG {
		return Sigact_t{}, -defs.EINVAL
	}
	if defs.Sigunblockable(sig) && act.Handler != defs.SIG_DFL {
		return Sigact_t{}, -defs.EINVAL
	}
	p := t.Proc
	p.siglock.Acquire()
	old := t.sigacts[sig]
	t.sigacts[sig] = act
	p.siglock.Release()
	return old, 0
}

// Sigprocmask updates t's blocked set; SIGKILL and SIGSTOP bits are silently
// stripped. returns the old set.
func (c *Core_t) Sigprocmask(t *Thread_t, how int, set uint32) (uint32, defs.Err_t) {
	p := t.Proc
	p.siglock.Acquire()
	old := t.sigblocked()
	switch how {
	case defs.SIG_BLOCK:
		t.setsigblock(sigeffblock(old | set))
	case defs.SIG_UNBLOCK:
		t.setsigblock(old &^ set)
	case defs.SIG_SETMASK:
		t.setsigblock(sigeffblock(set))
	default:
		p.siglock.Release()
		return 0, -defs.EINVAL
	}
	p.siglock.Release()
	return old, 0
}

// Signal_sendthread marks sig pending on t and arranges for it to be seen:
// sleepers are flushed through a synchronous tick, stopped threads resume
// when the effective action is CONTINUE. signals whose effective action is
// IGNORE, and blocked maskable signals, are dropped here rather than left
// pending.
func (c *Core_t) Signal_sendthread(t *Thread_t, sig int) defs.Err_t {
	if sig <= 0 || sig >= defs.NSIG {
		return -defs.EINVAL
	}
	p := t.Proc
	if p == nil {
		return -defs.EPERM
	}

	p.siglock.Acquire()
	act := t.action(sig)
	st := t.Status()
	if act == defs.ACT_CONTINUE && st&defs.THREAD_SLEEPING != 0 {
		p.siglock.Release()
		return -defs.ENOTSUP
	}
	if t.sigblocked()&defs.Sigbit(sig) != 0 && !defs.Sigunblockable(sig) {
		p.siglock.Release()
		return 0
	}
	if act == defs.ACT_IGNORE {
		p.siglock.Release()
		return 0
	}
	t.setsigpend(t.sigpending() | defs.Sigbit(sig))
	p.siglock.Release()

	// let sleeping threads notice immediately instead of on the next
	// timer interrupt
	c.Sleepers.Tick()

	// a stopped thread has no cpu to notice the pending bit; put it back
	// on a run queue so the dispatcher can act on the signal
	if st&defs.THREAD_STOPPED != 0 {
		t.statusclr(defs.THREAD_STOPPED)
		t.statusor(defs.THREAD_RUNNING)
		c.Scheds.Insert(c.Mach.Cpunum(), t)
	}
	return 0
}

// Signal_send delivers sig to p: the first thread not blocking it, else the
// main thread (unblockable signals always land somewhere).
func (c *Core_t) Signal_send(p *Proc_t, sig int) defs.Err_t {
	if sig <= 0 || sig >= defs.NSIG {
		return -defs.EINVAL
	}
	var target *Thread_t
	p.tlock.Acquire()
	for _, t := range p.threads {
		if t.sigblocked()&defs.Sigbit(sig) == 0 {
			target = t
			break
		}
	}
	if target == nil {
		target = p.mainthr
	}
	p.tlock.Release()
	if target == nil {
		return -defs.ESRCH
	}
	return c.Signal_sendthread(target, sig)
}

// Signal_sendpgrp delivers sig to every process in the group.
func (c *Core_t) Signal_sendpgrp(pgid, sig int) defs.Err_t {
	found := false
	var err defs.Err_t
	c.Ptable.Iter(func(pid int, p *Proc_t) bool {
		if p.Pgid == pgid {
			found = true
			if e := c.Signal_send(p, sig); e != 0 {
				err = e
			}
		}
		return true
	})
	if !found {
		return -defs.ESRCH
	}
	return err
}

// Signal_handle dispatches t's deliverable pending signals on the way back
// to userspace. returns 0 when nothing was delivered, 1 when tf was rewritten
// to run a user handler, and 2 when the process died and t must not resume.
func (c *Core_t) Signal_handle(t *Thread_t, tf *[defs.TFSIZE]uintptr) int {
	p := t.Proc
	if p == nil {
		return 0
	}
	p.siglock.Acquire()
	if p.doomed {
		p.siglock.Release()
		c.Proc_exit(t, p, p.exitstatus, p.exitreason)
		return 2
	}
rescan:
	deliverable := t.sigpending() &^ sigeffblock(t.sigblocked())
	if deliverable == 0 {
		p.siglock.Release()
		return 0
	}
	for sig := 1; sig < defs.NSIG; sig++ {
		if deliverable&defs.Sigbit(sig) == 0 {
			continue
		}
		t.setsigpend(t.sigpending() &^ defs.Sigbit(sig))
		act := t.action(sig)
		if !defs.Isaction(act) && t.sigacts[sig].Flags&defs.SA_RESETHAND != 0 {
			t.sigacts[sig].Handler = defs.SIG_DFL
		}
		switch act {
		case defs.ACT_IGNORE, defs.ACT_CONTINUE:
			// CONTINUE already did its work at send time
			continue
		case defs.ACT_STOP:
			c.sigstop(t, sig)
			// stopped and later continued; the world may have
			// changed while we were parked
			goto rescan
		case defs.ACT_TERMINATE, defs.ACT_CORE:
			p.siglock.Release()
			c.Proc_exit(t, p, defs.Mkexitsig(sig), defs.EXIT_SIGNALED)
			return 2
		default:
			p.siglock.Release()
			if c.sigframe(t, tf, sig, act) {
				return 1
			}
			// user stack is gone; kill the process
			c.Proc_exit(t, p, defs.Mkexitsig(defs.SIGSEGV), defs.EXIT_SIGNALED)
			return 2
		}
	}
	p.siglock.Release()
	return 0
}

// sigstop parks t until a deliverable signal arrives (SIGCONT resumption
// re-marks the thread runnable from the sender). enters and leaves with
// siglock held.
func (c *Core_t) sigstop(t *Thread_t, sig int) {
	p := t.Proc
	p.exitreason = defs.EXIT_SIGNALED
	p.exitstatus = sig
	t.statusclr(defs.THREAD_RUNNING)
	t.statusor(defs.THREAD_STOPPED)
	p.siglock.Release()

	// tell anyone waiting on our state
	c.wakeproc(p.parent)
	p.Ptrace.notify(c, p, sig)

	for {
		t.park()
		p.siglock.Acquire()
		if t.sigpending()&^sigeffblock(t.sigblocked()) != 0 ||
			t.Status()&defs.THREAD_STOPPED == 0 {
			break
		}
		p.siglock.Release()
	}
	p.exitreason = defs.EXIT_NORMAL
	p.exitstatus = 0
	t.statusclr(defs.THREAD_STOPPED)
	t.statusor(defs.THREAD_RUNNING)
}

// sigframe rewrites tf to enter a user handler: the interrupted rip, rflags,
// the handler address and the signal number go on the user stack, and the
// trampoline unwinds through them after the handler returns.
func (c *Core_t) sigframe(t *Thread_t, tf *[defs.TFSIZE]uintptr, sig int, handler uintptr) bool {
	p := t.Proc
	if p.tramp == 0 {
		base, ok := c.Umem.Maptramp(p.Pid, c.Tramp)
		if !ok {
			return false
		}
		p.tramp = base
	}
	sp := tf[defs.TF_RSP]
	var ok bool
	frame := []uintptr{tf[defs.TF_RIP], tf[defs.TF_RFLAGS], handler, uintptr(sig)}
	for _, v := range frame {
		if sp, ok = c.Umem.Pushuser(sp, v); !ok {
			return false
		}
	}
	tf[defs.TF_RDI] = uintptr(sig)
	tf[defs.TF_RSP] = sp
	tf[defs.TF_RIP] = p.tramp
	return true
}
