package circbuf

// a bounded circular byte buffer. not thread-safe -- callers serialize with
// their own lock. head and tail only grow; indices are reduced mod bufsz.
type Cbuf_t struct {
	buf   []uint8
	bufsz int
	head  int
	tail  int
}

func (cb *Cbuf_t) Cb_init(sz int) {
	if sz <= 0 {
		panic("bad circbuf size")
	}
	cb.buf = make([]uint8, sz)
	cb.bufsz = sz
	cb.head, cb.tail = 0, 0
}

func (cb *Cbuf_t) Bufsz() int {
	return cb.bufsz
}

func (cb *Cbuf_t) Full() bool {
	return cb.head-cb.tail == cb.bufsz
}

func (cb *Cbuf_t) Empty() bool {
	return cb.head == cb.tail
}

func (cb *Cbuf_t) Left() int {
	return cb.bufsz - (cb.head - cb.tail)
}

func (cb *Cbuf_t) Used() int {
	return cb.head - cb.tail
}

// Copyin appends from src, stopping when the buffer fills. returns bytes
// consumed.
func (cb *Cbuf_t) Copyin(src []uint8) int {
	c := 0
	for len(src) > 0 && !cb.Full() {
		hi := cb.head % cb.bufsz
		dst := cb.buf[hi:]
		if left := cb.Left(); len(dst) > left {
			dst = dst[:left]
		}
		did := copy(dst, src)
		src = src[did:]
		cb.head += did
		c += did
	}
	return c
}

// Copyout fills dst from the tail, stopping when the buffer empties. returns
// bytes produced.
func (cb *Cbuf_t) Copyout(dst []uint8) int {
	c := 0
	for len(dst) > 0 && !cb.Empty() {
		ti := cb.tail % cb.bufsz
		src := cb.buf[ti:]
		if used := cb.Used(); len(src) > used {
			src = src[:used]
		}
		did := copy(dst, src)
		dst = dst[did:]
		cb.tail += did
		c += did
	}
	return c
}
