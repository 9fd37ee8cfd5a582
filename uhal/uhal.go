// Package uhal is a userspace port of the hal interfaces: a fake machine
// with a settable current cpu, a manual clock, map-backed user memory and an
// interrupt controller that invokes registered handlers directly. it exists
// so the task core and smp run under go test without hardware.
package uhal

import "runtime"
import "sync"
import "sync/atomic"

import "github.com/sasdallas/Ethereal-sub004/hal"

type Mach_t struct {
	ncpu int
	cur  int32
	ints []int32
}

func Mkmach(ncpu int) *Mach_t {
	m := &Mach_t{ncpu: ncpu, ints: make([]int32, ncpu)}
	for i := range m.ints {
		m.ints[i] = hal.INTS_ENABLED
	}
	return m
}

// Setcpu declares which cpu the calling goroutine acts as.
func (m *Mach_t) Setcpu(n int) {
	atomic.StoreInt32(&m.cur, int32(n))
}

func (m *Mach_t) Cpunum() int {
	return int(atomic.LoadInt32(&m.cur))
}

func (m *Mach_t) Ncpu() int {
	return m.ncpu
}

func (m *Mach_t) Intstate() int {
	return int(atomic.LoadInt32(&m.ints[m.Cpunum()]))
}

func (m *Mach_t) Setintstate(st int) {
	atomic.StoreInt32(&m.ints[m.Cpunum()], int32(st))
}

func (m *Mach_t) Pause() {
	runtime.Gosched()
}

// Clock_t is a manually advanced clock; subseconds are microseconds.
type Clock_t struct {
	sync.Mutex
	secs    uint64
	subsecs uint64
}

const subsecmax uint64 = 1000000

func Mkclock() *Clock_t {
	return &Clock_t{}
}

func (c *Clock_t) Now() (uint64, uint64) {
	c.Lock()
	defer c.Unlock()
	return c.secs, c.subsecs
}

func (c *Clock_t) Relative(secs, subsecs uint64) (uint64, uint64) {
	c.Lock()
	defer c.Unlock()
	s := c.secs + secs + (c.subsecs+subsecs)/subsecmax
	return s, (c.subsecs + subsecs) % subsecmax
}

func (c *Clock_t) Subsecmax() uint64 {
	return subsecmax
}

// Advance moves the clock forward by us microseconds.
func (c *Clock_t) Advance(us uint64) {
	c.Lock()
	defer c.Unlock()
	t := c.subsecs + us
	c.secs += t / subsecmax
	c.subsecs = t % subsecmax
}

// Mmu_t translates identically except where an alias or a bad range was
// installed, and counts invalidations per page.
type Mmu_t struct {
	sync.Mutex
	alias map[uintptr]uintptr
	bad   map[uintptr]bool
	invls map[uintptr]int
}

func Mkmmu() *Mmu_t {
	return &Mmu_t{
		alias: make(map[uintptr]uintptr),
		bad:   make(map[uintptr]bool),
		invls: make(map[uintptr]int),
	}
}

func (mu *Mmu_t) Translate(va uintptr) (uintptr, bool) {
	mu.Lock()
	defer mu.Unlock()
	page := va &^ 0xfff
	if mu.bad[page] {
		return 0, false
	}
	if pa, ok := mu.alias[page]; ok {
		return pa | (va & 0xfff), true
	}
	return va, true
}

func (mu *Mmu_t) Invlpg(va uintptr) {
	mu.Lock()
	mu.invls[va&^0xfff]++
	mu.Unlock()
}

// Alias maps the page of va to the page of pa.
func (mu *Mmu_t) Alias(va, pa uintptr) {
	mu.Lock()
	mu.alias[va&^0xfff] = pa &^ 0xfff
	mu.Unlock()
}

// Unmap makes the page of va fault on translation.
func (mu *Mmu_t) Unmap(va uintptr) {
	mu.Lock()
	mu.bad[va&^0xfff] = true
	mu.Unlock()
}

// Invlcount returns how many times the page of va was invalidated.
func (mu *Mmu_t) Invlcount(va uintptr) int {
	mu.Lock()
	defer mu.Unlock()
	return mu.invls[va&^0xfff]
}

// Usermem_t is a sparse word-addressed user memory shared by all fake
// processes; trampoline regions are carved per pid.
type Usermem_t struct {
	sync.Mutex
	mem    map[uintptr]uintptr
	tramps map[int][]byte
	// pushes below this address fail, 0 disables the check
	Stacklim uintptr
}

const trampbase uintptr = 0x7f0000000000

func Mkusermem() *Usermem_t {
	return &Usermem_t{
		mem:    make(map[uintptr]uintptr),
		tramps: make(map[int][]byte),
	}
}

func (um *Usermem_t) Maptramp(pid int, blob []byte) (uintptr, bool) {
	um.Lock()
	defer um.Unlock()
	um.tramps[pid] = append([]byte(nil), blob...)
	return trampbase + uintptr(pid)<<16, true
}

func (um *Usermem_t) Pushuser(sp uintptr, v uintptr) (uintptr, bool) {
	um.Lock()
	defer um.Unlock()
	sp -= 8
	if um.Stacklim != 0 && sp < um.Stacklim {
		return 0, false
	}
	um.mem[sp] = v
	return sp, true
}

// Readuser fetches a previously pushed word.
func (um *Usermem_t) Readuser(addr uintptr) (uintptr, bool) {
	um.Lock()
	defer um.Unlock()
	v, ok := um.mem[addr]
	return v, ok
}

// Tramp returns the trampoline blob installed for pid.
func (um *Usermem_t) Tramp(pid int) ([]byte, bool) {
	um.Lock()
	defer um.Unlock()
	b, ok := um.tramps[pid]
	return b, ok
}

// Bootmem_t fakes the low bootstrap page and AP stack allocator.
type Bootmem_t struct {
	sync.Mutex
	Bootcopies int
	nextstack  uintptr
}

func Mkbootmem() *Bootmem_t {
	return &Bootmem_t{nextstack: 0x200000}
}

func (bm *Bootmem_t) Copybootstrap(page uintptr, blob []byte) {
	bm.Lock()
	bm.Bootcopies++
	bm.Unlock()
}

func (bm *Bootmem_t) Allocapstack() uintptr {
	bm.Lock()
	defer bm.Unlock()
	ret := bm.nextstack
	bm.nextstack += 0x4000
	return ret
}

// Ipi_t dispatches fake inter-processor interrupts to registered handlers.
// lapic ids are cpu numbers. Sendstartup runs the AP entry on a new
// goroutine; the rest run synchronously on the sender.
type Ipi_t struct {
	sync.Mutex
	mach *Mach_t
	// dead cpus ignore everything
	dead map[int]bool
	err  int

	Tlbfn func()
	Nmifn func(cpu int)
	Apfn  func(cpu int)

	Inits    []int
	Startups []int
	Nmis     []int
}

func Mkipi(m *Mach_t) *Ipi_t {
	return &Ipi_t{mach: m, dead: make(map[int]bool)}
}

// Kill makes cpu ignore all further interrupts; Seterr makes the controller
// report e until cleared.
func (ip *Ipi_t) Kill(cpu int) {
	ip.Lock()
	ip.dead[cpu] = true
	ip.Unlock()
}

func (ip *Ipi_t) Seterr(e int) {
	ip.Lock()
	ip.err = e
	ip.Unlock()
}

func (ip *Ipi_t) Sendinit(lapicid int) {
	ip.Lock()
	ip.Inits = append(ip.Inits, lapicid)
	ip.Unlock()
}

func (ip *Ipi_t) Sendstartup(lapicid int, page uintptr) {
	ip.Lock()
	ip.Startups = append(ip.Startups, lapicid)
	dead := ip.dead[lapicid]
	fn := ip.Apfn
	ip.Unlock()
	if dead || fn == nil {
		return
	}
	go fn(lapicid)
}

func (ip *Ipi_t) Sendnmi(lapicid int) {
	ip.Lock()
	ip.Nmis = append(ip.Nmis, lapicid)
	dead := ip.dead[lapicid]
	fn := ip.Nmifn
	ip.Unlock()
	if dead || fn == nil {
		return
	}
	fn(lapicid)
}

func (ip *Ipi_t) Sendipi(vec int, flags int) {
	ip.Lock()
	fn := ip.Tlbfn
	me := ip.mach.Cpunum()
	ip.Unlock()
	if fn == nil {
		return
	}
	for cpu := 0; cpu < ip.mach.Ncpu(); cpu++ {
		if flags&hal.IPI_EXCLUDE_SELF != 0 && cpu == me {
			continue
		}
		ip.Lock()
		dead := ip.dead[cpu]
		ip.Unlock()
		if dead {
			continue
		}
		fn()
	}
}

func (ip *Ipi_t) Ipierr() int {
	ip.Lock()
	defer ip.Unlock()
	return ip.err
}
