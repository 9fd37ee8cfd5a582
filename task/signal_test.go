package task

import "sync/atomic"
import "testing"

import "github.com/sasdallas/Ethereal-sub004/defs"

// trapthread starts p's main thread emulating the interrupt return path:
// each dispatch it yields, then runs signal delivery, until quit is set.
func trapthread(tc *tcore, t *testing.T, p *Proc_t, quit *int32) *Thread_t {
	th := p.Mainthread()
	tc.c.Start(th, func(th *Thread_t) {
		for atomic.LoadInt32(quit) == 0 {
			tc.c.Yield(th)
			tc.c.Trapret(th)
		}
	})
	return th
}

func TestBlockedSignalDropped(t *testing.T) {
	tc := mktcore(1)
	p := tc.proc(t, "blocked", nil)
	th := p.Mainthread()

	if _, err := tc.c.Sigprocmask(th, defs.SIG_BLOCK, defs.Sigbit(defs.SIGUSR1)); err != 0 {
		t.Fatalf("sigprocmask: %d", err)
	}
	if err := tc.c.Signal_sendthread(th, defs.SIGUSR1); err != 0 {
		t.Fatalf("send: %d", err)
	}
	if th.sigpending() != 0 {
		t.Fatalf("blocked signal left pending: %#x", th.sigpending())
	}
}

func TestKillUnblockable(t *testing.T) {
	tc := mktcore(1)
	p := tc.proc(t, "kill", nil)
	th := p.Mainthread()

	// an attempt to block SIGKILL is silently stripped
	if _, err := tc.c.Sigprocmask(th, defs.SIG_BLOCK, defs.Sigbit(defs.SIGKILL)); err != 0 {
		t.Fatalf("sigprocmask: %d", err)
	}
	if th.sigblocked()&defs.Sigbit(defs.SIGKILL) != 0 {
		t.Fatalf("SIGKILL ended up blocked")
	}
	if err := tc.c.Signal_sendthread(th, defs.SIGKILL); err != 0 {
		t.Fatalf("send: %d", err)
	}
	if th.sigpending()&defs.Sigbit(defs.SIGKILL) == 0 {
		t.Fatalf("SIGKILL not pending")
	}
}

func TestIgnoredSignalDropped(t *testing.T) {
	tc := mktcore(1)
	p := tc.proc(t, "ign", nil)
	th := p.Mainthread()

	// SIGCHLD defaults to ignore
	if err := tc.c.Signal_sendthread(th, defs.SIGCHLD); err != 0 {
		t.Fatalf("send: %d", err)
	}
	if th.sigpending() != 0 {
		t.Fatalf("ignored signal left pending")
	}

	if _, err := tc.c.Sigaction(th, defs.SIGUSR2, Sigact_t{Handler: defs.ACT_IGNORE}); err != 0 {
		t.Fatalf("sigaction: %d", err)
	}
	if err := tc.c.Signal_sendthread(th, defs.SIGUSR2); err != 0 {
		t.Fatalf("send: %d", err)
	}
	if th.sigpending() != 0 {
		t.Fatalf("explicitly ignored signal left pending")
	}
}

func TestBadSignals(t *testing.T) {
	tc := mktcore(1)
	p := tc.proc(t, "bad", nil)
	th := p.Mainthread()

	for _, sig := range []int{0, -1, defs.NSIG, defs.NSIG + 10} {
		if err := tc.c.Signal_sendthread(th, sig); err != -defs.EINVAL {
			t.Fatalf("sig %d gave %d", sig, err)
		}
	}
	if _, err := tc.c.Sigaction(th, defs.SIGKILL, Sigact_t{Handler: 0x1000}); err != -defs.EINVAL {
		t.Fatalf("rebound SIGKILL: %d", err)
	}
}

func TestDefaultTerminate(t *testing.T) {
	tc := mktcore(1)
	parent := tc.proc(t, "parent", nil)
	p := tc.proc(t, "victim", parent)

	quit := int32(0)
	th := trapthread(tc, t, p, &quit)
	if !tc.step(0) {
		t.Fatalf("thread did not run")
	}

	if err := tc.c.Signal_sendthread(th, defs.SIGTERM); err != 0 {
		t.Fatalf("send: %d", err)
	}
	if !tc.step(0) {
		t.Fatalf("signaled thread not dispatched")
	}

	reason, status := p.Exitinfo()
	if reason != defs.EXIT_SIGNALED || status != defs.Mkexitsig(defs.SIGTERM) {
		t.Fatalf("exit %d/%d", reason, status)
	}
	st, err := parent.Mywait.Reappid(nil, p.Pid, true)
	if err != 0 {
		t.Fatalf("reap: %d", err)
	}
	if !st.Valid || st.Status != defs.Mkexitsig(defs.SIGTERM) {
		t.Fatalf("wait status %+v", st)
	}
	if _, ok := tc.c.Ptable.Get(p.Pid); ok {
		t.Fatalf("dead process still in the table")
	}
}

func TestStopAndContinue(t *testing.T) {
	tc := mktcore(1)
	parent := tc.proc(t, "parent", nil)
	p := tc.proc(t, "stopped", parent)

	quit := int32(0)
	th := trapthread(tc, t, p, &quit)
	if !tc.step(0) {
		t.Fatalf("thread did not run")
	}

	if err := tc.c.Signal_sendthread(th, defs.SIGTSTP); err != 0 {
		t.Fatalf("send: %d", err)
	}
	if !tc.step(0) {
		t.Fatalf("thread not dispatched to stop")
	}
	if st := th.Status(); st&defs.THREAD_STOPPED == 0 || st&defs.THREAD_RUNNING != 0 {
		t.Fatalf("status %#x after stop", st)
	}
	reason, status := p.Exitinfo()
	if reason != defs.EXIT_SIGNALED || status != defs.SIGTSTP {
		t.Fatalf("stop info %d/%d", reason, status)
	}
	// a stopped thread gets no cpu
	if tc.step(0) {
		t.Fatalf("stopped thread dispatched")
	}

	atomic.StoreInt32(&quit, 1)
	if err := tc.c.Signal_sendthread(th, defs.SIGCONT); err != 0 {
		t.Fatalf("cont: %d", err)
	}
	if !tc.step(0) {
		t.Fatalf("continued thread not dispatched")
	}
	if st := th.Status(); st&defs.THREAD_STOPPED != 0 {
		t.Fatalf("status %#x after continue", st)
	}
	reason, status = p.Exitinfo()
	if reason != defs.EXIT_NORMAL || status != 0 {
		t.Fatalf("exit info %d/%d not restored", reason, status)
	}
	tc.run(0)
}

func TestContinueSleepingNotsup(t *testing.T) {
	tc := mktcore(1)
	p := tc.proc(t, "sleeper", nil)

	th := tc.spawn(t, p, func(th *Thread_t) {
		if err := tc.c.Sleepers.Until_never(th); err != 0 {
			t.Errorf("until_never: %d", err)
			return
		}
		tc.c.Sleepers.Enter(th)
	})
	tc.run(0)

	if err := tc.c.Signal_sendthread(th, defs.SIGCONT); err != -defs.ENOTSUP {
		t.Fatalf("continue of a sleeping thread gave %d", err)
	}
	tc.c.Sleepers.Wakeup(th)
	tc.tick(1000)
	tc.run(0)
}

func TestUserHandlerFrame(t *testing.T) {
	tc := mktcore(1)
	p := tc.proc(t, "handler", nil)

	const handler uintptr = 0x500000
	const rip uintptr = 0x401000
	const rsp uintptr = 0x7ffff000
	const rflags uintptr = 0x202

	quit := int32(0)
	th := trapthread(tc, t, p, &quit)
	th.Tf[defs.TF_RIP] = rip
	th.Tf[defs.TF_RSP] = rsp
	th.Tf[defs.TF_RFLAGS] = rflags

	if _, err := tc.c.Sigaction(th, defs.SIGUSR1, Sigact_t{Handler: handler, Flags: defs.SA_RESETHAND}); err != 0 {
		t.Fatalf("sigaction: %d", err)
	}
	if !tc.step(0) {
		t.Fatalf("thread did not run")
	}
	if err := tc.c.Signal_sendthread(th, defs.SIGUSR1); err != 0 {
		t.Fatalf("send: %d", err)
	}
	atomic.StoreInt32(&quit, 1)
	if !tc.step(0) {
		t.Fatalf("thread not dispatched")
	}
	tc.run(0)

	if th.Tf[defs.TF_RDI] != uintptr(defs.SIGUSR1) {
		t.Fatalf("rdi %#x", th.Tf[defs.TF_RDI])
	}
	if th.Tf[defs.TF_RSP] != rsp-32 {
		t.Fatalf("rsp %#x", th.Tf[defs.TF_RSP])
	}
	tbase := th.Tf[defs.TF_RIP]
	if _, ok := tc.umem.Tramp(p.Pid); !ok || tbase == rip {
		t.Fatalf("trampoline not mapped (rip %#x)", tbase)
	}
	for i, want := range []uintptr{rip, rflags, handler, uintptr(defs.SIGUSR1)} {
		got, ok := tc.umem.Readuser(rsp - uintptr(i+1)*8)
		if !ok || got != want {
			t.Fatalf("stack word %d: %#x != %#x", i, got, want)
		}
	}
	// SA_RESETHAND: a second delivery falls back to the default action
	if th.sigacts[defs.SIGUSR1].Handler != defs.SIG_DFL {
		t.Fatalf("one-shot handler survived delivery")
	}
}

func TestSignalSendPicksUnblocked(t *testing.T) {
	tc := mktcore(1)
	p := tc.proc(t, "multi", nil)
	main := p.Mainthread()

	var second *Thread_t
	second = tc.spawn(t, p, func(th *Thread_t) {
		tc.c.Yield(th)
	})

	// main blocks SIGUSR1; the second thread must receive it
	if _, err := tc.c.Sigprocmask(main, defs.SIG_BLOCK, defs.Sigbit(defs.SIGUSR1)); err != 0 {
		t.Fatalf("sigprocmask: %d", err)
	}
	if err := tc.c.Signal_send(p, defs.SIGUSR1); err != 0 {
		t.Fatalf("send: %d", err)
	}
	if main.sigpending() != 0 {
		t.Fatalf("blocked main got the signal")
	}
	if second.sigpending()&defs.Sigbit(defs.SIGUSR1) == 0 {
		t.Fatalf("unblocked thread did not get the signal")
	}
	tc.run(0)
}

func TestSignalPgrp(t *testing.T) {
	tc := mktcore(1)
	a := tc.proc(t, "a", nil)
	b, ok := tc.c.Proc_new("b", nil, a.Pgid)
	if !ok {
		t.Fatalf("proc_new")
	}
	c := tc.proc(t, "c", nil) // its own group

	if err := tc.c.Signal_sendpgrp(a.Pgid, defs.SIGUSR1); err != 0 {
		t.Fatalf("sendpgrp: %d", err)
	}
	if a.Mainthread().sigpending()&defs.Sigbit(defs.SIGUSR1) == 0 {
		t.Fatalf("group leader missed the signal")
	}
	if b.Mainthread().sigpending()&defs.Sigbit(defs.SIGUSR1) == 0 {
		t.Fatalf("group member missed the signal")
	}
	if c.Mainthread().sigpending() != 0 {
		t.Fatalf("outsider got the signal")
	}

	if err := tc.c.Signal_sendpgrp(99999, defs.SIGUSR1); err != -defs.ESRCH {
		t.Fatalf("empty group gave %d", err)
	}
}
