package task

import "github.com/sasdallas/Ethereal-sub004/circbuf"
import "github.com/sasdallas/Ethereal-sub004/defs"
import "github.com/sasdallas/Ethereal-sub004/limits"
import "github.com/sasdallas/Ethereal-sub004/spinlock"

// Pipe_t is a blocking in-kernel byte pipe: readers sleep on data, writers
// on space. a wake reason of WAKEUP_SIGNAL interrupts either side with
// -EINTR.
type Pipe_t struct {
	l  *spinlock.Lock_t
	cb circbuf.Cbuf_t
	// blocked readers and writers
	rq *Queue_t
	wq *Queue_t
	// reader/writer ends still open
	readers int
	writers int
	core    *Core_t
}

func (c *Core_t) Mkpipe() *Pipe_t {
	p := &Pipe_t{
		l:       spinlock.Mklock(c.Mach, "pipe"),
		rq:      c.Sleepers.Mkqueue("piper"),
		wq:      c.Sleepers.Mkqueue("pipew"),
		readers: 1,
		writers: 1,
		core:    c,
	}
	p.cb.Cb_init(limits.Syslimit.Pipesz)
	return p
}

// Write copies src into the pipe, blocking while it is full. returns bytes
// written; a pipe with no readers raises EPIPE (and SIGPIPE on the writer).
func (pi *Pipe_t) Write(t *Thread_t, src []uint8) (int, defs.Err_t) {
	ret := 0
	for {
		pi.l.Acquire()
		if pi.readers == 0 {
			pi.l.Release()
			if t.Proc != nil {
				pi.core.Signal_sendthread(t, defs.SIGPIPE)
			}
			return ret, -defs.EPIPE
		}
		did := pi.cb.Copyin(src)
		src = src[did:]
		ret += did
		if did > 0 {
			pi.rq.Wakeupq(0)
		}
		if len(src) == 0 {
			pi.l.Release()
			return ret, 0
		}
		// full; wait for a reader
		if err := pi.wq.Inqueue(t); err != 0 {
			pi.l.Release()
			return ret, err
		}
		pi.l.Release()
		if pi.core.Sleepers.Enter(t) == defs.WAKEUP_SIGNAL {
			pi.wq.Remove(t)
			return ret, -defs.EINTR
		}
	}
}

// Read copies from the pipe into dst, blocking while it is empty. returns 0
// bytes at eof (all writers closed).
func (pi *Pipe_t) Read(t *Thread_t, dst []uint8) (int, defs.Err_t) {
	for {
		pi.l.Acquire()
		did := pi.cb.Copyout(dst)
		if did > 0 {
			pi.wq.Wakeupq(0)
			pi.l.Release()
			return did, 0
		}
		if pi.writers == 0 || len(dst) == 0 {
			pi.l.Release()
			return 0, 0
		}
		// empty; wait for a writer
		if err := pi.rq.Inqueue(t); err != 0 {
			pi.l.Release()
			return 0, err
		}
		pi.l.Release()
		if pi.core.Sleepers.Enter(t) == defs.WAKEUP_SIGNAL {
			pi.rq.Remove(t)
			return 0, -defs.EINTR
		}
	}
}

// Closeread drops a reader end; the last one gone fails blocked writers.
func (pi *Pipe_t) Closeread() {
	pi.l.Acquire()
	pi.readers--
	if pi.readers < 0 {
		panic("pipe reader underflow")
	}
	last := pi.readers == 0
	pi.l.Release()
	if last {
		pi.wq.Wakeupq(0)
	}
}

// Closewrite drops a writer end; the last one gone is eof for readers.
func (pi *Pipe_t) Closewrite() {
	pi.l.Acquire()
	pi.writers--
	if pi.writers < 0 {
		panic("pipe writer underflow")
	}
	last := pi.writers == 0
	pi.l.Release()
	if last {
		pi.rq.Wakeupq(0)
	}
}
