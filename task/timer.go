package task

import "github.com/sasdallas/Ethereal-sub004/defs"
import "github.com/sasdallas/Ethereal-sub004/spinlock"

// interval timer kinds; only the wall-clock one is supported
const (
	ITIMER_REAL    = 0
	ITIMER_VIRTUAL = 1
	ITIMER_PROF    = 2
)

type Itimerval_t struct {
	Interval defs.Timespec_t
	Value    defs.Timespec_t
}

// itimer_t is a process's wall-clock interval timer. protected by the
// Timers_t lock.
type itimer_t struct {
	armed bool
	// absolute expiry in clock units
	secs    uint64
	subsecs uint64
	// re-arm interval; zero means one shot
	interval defs.Timespec_t
}

// Timers_t drives every armed process interval timer off the periodic tick.
type Timers_t struct {
	l     *spinlock.Lock_t
	procs []*Proc_t
	core  *Core_t
}

func mktimers(c *Core_t) *Timers_t {
	return &Timers_t{l: spinlock.Mklock(c.Mach, "itimer"), core: c}
}

func (ts *Timers_t) subsec(t defs.Timespec_t) (uint64, uint64) {
	// clock subseconds are microseconds
	max := ts.core.Clock.Subsecmax()
	ss := t.Nsec / 1000
	return t.Sec + ss/max, ss % max
}

// Setitimer arms, rearms, or disarms p's timer and returns the previous
// setting. a zero new value disarms.
func (ts *Timers_t) Setitimer(p *Proc_t, which int, nv Itimerval_t) (Itimerval_t, defs.Err_t) {
	if which != ITIMER_REAL {
		return Itimerval_t{}, -defs.ENOTSUP
	}
	ts.l.Acquire()
	old := Itimerval_t{Interval: p.itimer.interval}
	if p.itimer.armed {
		secs, ss := ts.core.Clock.Now()
		if p.itimer.secs > secs || (p.itimer.secs == secs && p.itimer.subsecs > ss) {
			old.Value.Sec = p.itimer.secs - secs
			old.Value.Nsec = 0
		}
	}
	if nv.Value.Sec == 0 && nv.Value.Nsec == 0 {
		ts.disarm(p)
		ts.l.Release()
		return old, 0
	}
	rs, rss := ts.subsec(nv.Value)
	p.itimer.secs, p.itimer.subsecs = ts.core.Clock.Relative(rs, rss)
	p.itimer.interval = nv.Interval
	if !p.itimer.armed {
		p.itimer.armed = true
		ts.procs = append(ts.procs, p)
	}
	ts.l.Release()
	return old, 0
}

// caller holds ts.l
func (ts *Timers_t) disarm(p *Proc_t) {
	if !p.itimer.armed {
		return
	}
	p.itimer.armed = false
	for i := range ts.procs {
		if ts.procs[i] == p {
			ts.procs = append(ts.procs[:i], ts.procs[i+1:]...)
			break
		}
	}
}

// cancel drops p's timer at process teardown.
func (ts *Timers_t) cancel(p *Proc_t) {
	ts.l.Acquire()
	ts.disarm(p)
	ts.l.Release()
}

// Tick fires expired timers: SIGALRM to the owner, then a re-arm for
// periodic ones. runs from the timer interrupt after the sleep scan.
func (ts *Timers_t) Tick() {
	if !ts.l.Tryacquire() {
		return
	}
	secs, ss := ts.core.Clock.Now()
	var fire []*Proc_t
	for _, p := range ts.procs {
		it := &p.itimer
		if it.secs < secs || (it.secs == secs && it.subsecs <= ss) {
			fire = append(fire, p)
		}
	}
	for _, p := range fire {
		it := &p.itimer
		if it.interval.Sec == 0 && it.interval.Nsec == 0 {
			ts.disarm(p)
		} else {
			rs, rss := ts.subsec(it.interval)
			it.secs, it.subsecs = ts.core.Clock.Relative(rs, rss)
		}
	}
	ts.l.Release()
	// signals go out with the timer lock dropped; Signal_send takes the
	// thread and signal locks
	for _, p := range fire {
		ts.core.Signal_send(p, defs.SIGALRM)
	}
}
