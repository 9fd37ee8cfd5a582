package task

import "sync/atomic"
import "testing"

import "github.com/sasdallas/Ethereal-sub004/defs"
import "github.com/sasdallas/Ethereal-sub004/limits"

func TestExitAndWait(t *testing.T) {
	tc := mktcore(1)
	parent := tc.proc(t, "parent", nil)
	child := tc.proc(t, "child", parent)

	tc.c.Start(child.Mainthread(), func(th *Thread_t) {
		tc.c.Thread_exit(th, 42)
	})
	tc.run(0)

	st, err := parent.Mywait.Reappid(nil, child.Pid, true)
	if err != 0 {
		t.Fatalf("reap: %d", err)
	}
	if !st.Valid || st.Status != 42 {
		t.Fatalf("status %+v", st)
	}
	if _, ok := tc.c.Ptable.Get(child.Pid); ok {
		t.Fatalf("child still in the process table")
	}
	// a second reap of the same pid fails
	if _, err = parent.Mywait.Reappid(nil, child.Pid, true); err != -defs.ECHILD {
		t.Fatalf("double reap gave %d", err)
	}
}

func TestWaitNotMyChild(t *testing.T) {
	tc := mktcore(1)
	a := tc.proc(t, "a", nil)
	b := tc.proc(t, "b", nil)

	if _, err := a.Mywait.Reappid(nil, b.Pid, true); err != -defs.ECHILD {
		t.Fatalf("waited for a stranger: %d", err)
	}
	if _, err := a.Mywait.Reappid(nil, defs.WAIT_ANY, true); err != -defs.ECHILD {
		t.Fatalf("childless wait gave %d", err)
	}
}

func TestBlockingWait(t *testing.T) {
	tc := mktcore(1)
	grand := tc.proc(t, "grand", nil)
	parent := tc.proc(t, "parent", grand)
	child := tc.proc(t, "child", parent)

	var st Waitst_t
	var err defs.Err_t
	done := false
	tc.c.Start(parent.Mainthread(), func(th *Thread_t) {
		st, err = parent.Mywait.Reappid(th, child.Pid, false)
		done = true
	})
	tc.run(0)
	if done {
		t.Fatalf("wait returned with the child alive")
	}

	tc.c.Start(child.Mainthread(), func(th *Thread_t) {
		tc.c.Thread_exit(th, 7)
	})
	tc.run(0)
	tc.tick(1000)
	tc.run(0)
	if !done {
		t.Fatalf("parent still blocked after child exit")
	}
	if err != 0 || !st.Valid || st.Status != 7 {
		t.Fatalf("wait gave %d %+v", err, st)
	}
}

func TestThreadJoin(t *testing.T) {
	tc := mktcore(1)
	p := tc.proc(t, "join", nil)

	worker := tc.spawn(t, p, func(th *Thread_t) {
		tc.c.Yield(th)
		tc.c.Thread_exit(th, 13)
	})

	ret := 0
	var jerr defs.Err_t
	done := false
	tc.spawn(t, p, func(th *Thread_t) {
		ret, jerr = tc.c.Thread_join(th, worker)
		done = true
	})
	tc.run(0)
	tc.tick(1000)
	tc.run(0)
	if !done {
		t.Fatalf("join never returned")
	}
	if jerr != 0 || ret != 13 {
		t.Fatalf("join gave %d/%d", ret, jerr)
	}
}

// a joiner whose queue wakeup is lost must still come back via the tick
// scan noticing the target exited
func TestJoinMissedWakeup(t *testing.T) {
	tc := mktcore(1)
	p := tc.proc(t, "missjoin", nil)

	worker := tc.spawn(t, p, func(th *Thread_t) {
		tc.c.Yield(th)
		tc.c.Thread_exit(th, 21)
	})

	ret := 0
	var jerr defs.Err_t
	done := false
	joiner := tc.spawn(t, p, func(th *Thread_t) {
		ret, jerr = tc.c.Thread_join(th, worker)
		done = true
	})

	tc.step(0) // worker yields
	tc.step(0) // joiner blocks in join
	// drop the joiner from the exit notification queue so the wakeup
	// sent by the worker's exit never reaches it
	if !worker.joinq.Remove(joiner) {
		t.Fatalf("joiner not queued on the target")
	}
	tc.run(0) // worker exits; nobody to wake
	if done {
		t.Fatalf("join returned without a wakeup")
	}
	tc.tick(1000)
	tc.run(0)
	if !done {
		t.Fatalf("join never returned")
	}
	if jerr != 0 || ret != 21 {
		t.Fatalf("join gave %d/%d", ret, jerr)
	}
}

func TestJoinSelf(t *testing.T) {
	tc := mktcore(1)
	p := tc.proc(t, "self", nil)
	var err defs.Err_t
	tc.spawn(t, p, func(th *Thread_t) {
		_, err = tc.c.Thread_join(th, th)
	})
	tc.run(0)
	if err != -defs.EINVAL {
		t.Fatalf("self join gave %d", err)
	}
}

func TestProcExitDoomsThreads(t *testing.T) {
	tc := mktcore(1)
	parent := tc.proc(t, "parent", nil)
	p := tc.proc(t, "doomed", parent)

	// one thread sleeping, one queued
	sleeper := tc.spawn(t, p, func(th *Thread_t) {
		if err := tc.c.Sleepers.Until_never(th); err != 0 {
			t.Errorf("until_never: %d", err)
			return
		}
		tc.c.Sleepers.Enter(th)
		tc.c.Trapret(th)
		t.Errorf("doomed sleeper resumed")
	})
	queued := tc.spawn(t, p, func(th *Thread_t) {
		t.Errorf("doomed queued thread ran")
	})
	if !tc.step(0) {
		t.Fatalf("sleeper did not start")
	}

	tc.c.Proc_exit(nil, p, 9, defs.EXIT_SIGNALED)
	if !p.Doomed() {
		t.Fatalf("not doomed")
	}
	// the tick releases the sleeper; the scheduler then reaps both
	tc.tick(1000)
	tc.run(0)
	if queued.Status()&defs.THREAD_STOPPED == 0 {
		t.Fatalf("queued thread not destroyed")
	}
	if sleeper.Status()&(defs.THREAD_STOPPING|defs.THREAD_STOPPED) == 0 {
		t.Fatalf("sleeper not stopping")
	}
	st, err := parent.Mywait.Reappid(nil, p.Pid, true)
	if err != 0 || !st.Valid || st.Status != 9 {
		t.Fatalf("reap gave %d %+v", err, st)
	}
}

func TestThreadLimit(t *testing.T) {
	tc := mktcore(1)
	p := tc.proc(t, "limit", nil)

	// exhaust the global budget artificially
	saved := tc.c.nthreads
	tc.c.nthreads = int64(limits.Syslimit.Sysprocs)
	if _, ok := tc.c.Thread_new(p, 0); ok {
		t.Fatalf("thread_new over the limit succeeded")
	}
	tc.c.nthreads = saved
}

func TestPtraceAttachStop(t *testing.T) {
	tc := mktcore(1)
	tracer := tc.proc(t, "tracer", nil)
	tracee := tc.proc(t, "tracee", nil)

	quit := int32(0)
	th := trapthread(tc, t, tracee, &quit)
	if !tc.step(0) {
		t.Fatalf("tracee did not run")
	}

	if err := tc.c.Ptrace_attach(tracer, tracee); err != 0 {
		t.Fatalf("attach: %d", err)
	}
	if err := tc.c.Ptrace_attach(tracer, tracee); err != -defs.EPERM {
		t.Fatalf("double attach gave %d", err)
	}
	if !tc.step(0) {
		t.Fatalf("tracee not dispatched to stop")
	}
	if th.Status()&defs.THREAD_STOPPED == 0 {
		t.Fatalf("tracee not stopped")
	}
	if tracee.Ptrace.Lastsig() != defs.SIGSTOP {
		t.Fatalf("stop signal %d", tracee.Ptrace.Lastsig())
	}

	// register access only works while stopped, and only for the tracer
	var regs [defs.TFSIZE]uintptr
	if err := tc.c.Ptrace_getregs(tracee, tracee, &regs); err != -defs.EPERM {
		t.Fatalf("getregs by a stranger gave %d", err)
	}
	if err := tc.c.Ptrace_getregs(tracer, tracee, &regs); err != 0 {
		t.Fatalf("getregs: %d", err)
	}
	regs[defs.TF_RAX] = 0xdead
	if err := tc.c.Ptrace_setregs(tracer, tracee, &regs); err != 0 {
		t.Fatalf("setregs: %d", err)
	}
	if th.Tf[defs.TF_RAX] != 0xdead {
		t.Fatalf("setregs did not stick")
	}

	// resume and detach
	if err := tc.c.Ptrace_cont(tracer, tracee, 0); err != 0 {
		t.Fatalf("cont: %d", err)
	}
	if !tc.step(0) {
		t.Fatalf("continued tracee not dispatched")
	}
	if th.Status()&defs.THREAD_STOPPED != 0 {
		t.Fatalf("tracee still stopped")
	}
	if err := tc.c.Ptrace_detach(tracer, tracee); err != 0 {
		t.Fatalf("detach: %d", err)
	}
	if tracee.Ptrace.Tracer() != nil {
		t.Fatalf("tracer survived detach")
	}
	atomic.StoreInt32(&quit, 1)
	tc.run(0)
}

func TestPtraceSyscallStop(t *testing.T) {
	tc := mktcore(1)
	tracer := tc.proc(t, "tracer", nil)
	tracee := tc.proc(t, "tracee", nil)

	nsys := 0
	th := tracee.Mainthread()
	tc.c.Start(th, func(self *Thread_t) {
		for i := 0; i < 2; i++ {
			tc.c.Yield(self)
			tc.c.Trapret(self)
			tc.c.Syscall_enter(self)
			nsys++
		}
	})
	if !tc.step(0) {
		t.Fatalf("tracee did not run")
	}

	if err := tc.c.Ptrace_attach(tracer, tracee); err != 0 {
		t.Fatalf("attach: %d", err)
	}
	if !tc.step(0) {
		t.Fatalf("tracee not dispatched to stop")
	}
	if err := tc.c.Ptrace_syscall(tracer, tracee); err != 0 {
		t.Fatalf("ptrace_syscall: %d", err)
	}
	// resumes, hits the syscall hook, stops again
	if !tc.step(0) {
		t.Fatalf("tracee not resumed")
	}
	if th.Status()&defs.THREAD_STOPPED == 0 {
		t.Fatalf("no syscall stop")
	}
	if nsys != 0 {
		t.Fatalf("syscall ran before the stop")
	}
	if err := tc.c.Ptrace_cont(tracer, tracee, 0); err != 0 {
		t.Fatalf("cont: %d", err)
	}
	tc.run(0)
	if nsys != 2 {
		t.Fatalf("tracee finished %d syscalls", nsys)
	}
}
