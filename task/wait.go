package task

import "sync/atomic"

import "github.com/sasdallas/Ethereal-sub004/defs"
import "github.com/sasdallas/Ethereal-sub004/spinlock"

// requirements for wait* operations (used for processes and threads):
// - wait for a pid that is not my child must fail
// - only one wait for a specific pid may succeed; others must fail
// - wait when there are no children must fail
// - wait for a process should not return thread info and vice versa
type Waitst_t struct {
	Pid    int
	Status int
	// true iff the exit status is valid
	Valid bool
}

type Wait_t struct {
	l     *spinlock.Lock_t
	pwait whead_t
	twait whead_t
	// bumped whenever a status becomes valid; blocked reapers sleep on it
	gen  int32
	Pid  int
	core *Core_t
}

func (w *Wait_t) Wait_init(c *Core_t, mypid int) {
	w.l = spinlock.Mklock(c.Mach, "wait")
	w.Pid = mypid
	w.core = c
}

type wlist_t struct {
	next *wlist_t
	wst  Waitst_t
}

type whead_t struct {
	head  *wlist_t
	count int
}

func (wh *whead_t) wpush(id int) {
	n := &wlist_t{}
	n.wst.Pid = id
	n.next = wh.head
	wh.head = n
	wh.count++
}

func (wh *whead_t) wpopvalid() (Waitst_t, bool) {
	var prev *wlist_t
	n := wh.head
	for n != nil {
		if n.wst.Valid {
			wh.wremove(prev, n)
			return n.wst, true
		}
		prev = n
		n = n.next
	}
	var zw Waitst_t
	return zw, false
}

// returns the previous element in the wait status singly-linked list (in order
// to remove the requested element), the requested element, and whether the
// requested element was found.
func (wh *whead_t) wfind(id int) (*wlist_t, *wlist_t, bool) {
	var prev *wlist_t
	ret := wh.head
	for ret != nil {
		if ret.wst.Pid == id {
			return prev, ret, true
		}
		prev = ret
		ret = ret.next
	}
	return nil, nil, false
}

func (wh *whead_t) wremove(prev, h *wlist_t) {
	if prev != nil {
		prev.next = h.next
	} else {
		wh.head = h.next
	}
	h.next = nil
	wh.count--
}

// returns the number of nodes in the linked list
func (w *Wait_t) Len() int {
	w.l.Acquire()
	defer w.l.Release()
	ret := 0
	for p := w.pwait.head; p != nil; p = p.next {
		ret++
	}
	for p := w.twait.head; p != nil; p = p.next {
		ret++
	}
	return ret
}

// if there are more unreaped child statuses (procs or threads) than noproc,
// _start() returns false and id is not added to the status map.
func (w *Wait_t) _start(id int, isproc bool, noproc uint) bool {
	w.l.Acquire()
	defer w.l.Release()
	if uint(w.pwait.count+w.twait.count) > noproc {
		return false
	}
	var wh *whead_t
	if isproc {
		wh = &w.pwait
	} else {
		wh = &w.twait
	}
	wh.wpush(id)
	return true
}

func (w *Wait_t) putpid(pid, status int) {
	w._put(pid, status, true)
}

func (w *Wait_t) puttid(tid, status int) {
	w._put(tid, status, false)
}

func (w *Wait_t) _put(id, status int, isproc bool) {
	w.l.Acquire()
	defer w.l.Release()
	var wh *whead_t
	if isproc {
		wh = &w.pwait
	} else {
		wh = &w.twait
	}
	_, wn, ok := wh.wfind(id)
	if !ok {
		panic("id must exist")
	}
	wn.wst.Valid = true
	wn.wst.Status = status
	atomic.AddInt32(&w.gen, 1)
}

func (w *Wait_t) Reappid(self *Thread_t, pid int, noblk bool) (Waitst_t, defs.Err_t) {
	return w._reap(self, pid, true, noblk)
}

func (w *Wait_t) Reaptid(self *Thread_t, tid int, noblk bool) (Waitst_t, defs.Err_t) {
	return w._reap(self, tid, false, noblk)
}

func (w *Wait_t) _reap(self *Thread_t, id int, isproc bool, noblk bool) (Waitst_t, defs.Err_t) {
	if id == defs.WAIT_MYPGRP {
		panic("no imp")
	}
	var wh *whead_t
	if isproc {
		wh = &w.pwait
	} else {
		wh = &w.twait
	}

	var zw Waitst_t
	for {
		w.l.Acquire()
		if id == defs.WAIT_ANY {
			if wh.count < 0 {
				panic("neg childs")
			}
			if wh.count == 0 {
				w.l.Release()
				return zw, -defs.ECHILD
			}
			if ret, ok := wh.wpopvalid(); ok {
				w.l.Release()
				return ret, 0
			}
		} else {
			wp, wn, ok := wh.wfind(id)
			if !ok {
				w.l.Release()
				return zw, -defs.ECHILD
			}
			if wn.wst.Valid {
				wh.wremove(wp, wn)
				w.l.Release()
				return wn.wst, 0
			}
		}
		if noblk {
			w.l.Release()
			return zw, 0
		}
		// wait for someone to exit. the generation is sampled under
		// the lock so a status posted before we sleep still wakes us.
		mygen := atomic.LoadInt32(&w.gen)
		w.l.Release()
		err := w.core.Sleepers.Until_cond(self, func(t *Thread_t, ctx interface{}) bool {
			return atomic.LoadInt32(&w.gen) != mygen
		}, nil)
		if err != 0 {
			return zw, err
		}
		if w.core.Sleepers.Enter(self) == defs.WAKEUP_SIGNAL {
			return zw, -defs.EINTR
		}
	}
}
