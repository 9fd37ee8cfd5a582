package defs

type Tid_t int

type Pid_t int

// thread status bits. a thread is RUNNING while queued or executing, SLEEPING
// while it owns a sleep descriptor, STOPPED once suspended (job control or
// destroyed), and STOPPING while waiting for a scheduler to reap it.
const (
	THREAD_KERNEL   uint32 = 0x01
	THREAD_STOPPED  uint32 = 0x02
	THREAD_RUNNING  uint32 = 0x04
	THREAD_SLEEPING uint32 = 0x08
	THREAD_STOPPING uint32 = 0x10
)

// sleep descriptor kinds. a descriptor holds one of these until the tick scan
// wakes it, at which point the kind is overwritten with the wake reason.
const (
	SLEEP_NOCOND = 0
	SLEEP_WAKEUP = 1
	SLEEP_TIME   = 2
	SLEEP_COND   = 3
)

// wake reasons; all are > the largest sleep kind so a descriptor state >=
// WAKEUP_SIGNAL means "already woken".
const (
	WAKEUP_SIGNAL         = 4
	WAKEUP_TIME           = 5
	WAKEUP_COND           = 6
	WAKEUP_ANOTHER_THREAD = 7
)

// wait id arguments
const (
	WAIT_ANY    = -1
	WAIT_MYPGRP = 0
)

// process exit reasons
const (
	EXIT_NORMAL   = 0
	EXIT_SIGNALED = 1
)

// Mkexitsig builds the wait status for a signal-terminated process.
func Mkexitsig(sig int) int {
	return ((128 + sig) << 8) | sig
}

type Timespec_t struct {
	Sec  uint64
	Nsec uint64
}

// trap frame layout; the architecture layer saves registers in this order.
const (
	TFSIZE    = 24
	TFREGS    = 17
	TF_RSI    = 11
	TF_RDI    = 12
	TF_RDX    = 13
	TF_RCX    = 14
	TF_RBX    = 15
	TF_RAX    = 16
	TF_TRAP   = TFREGS
	TF_ERROR  = TFREGS + 1
	TF_RIP    = TFREGS + 2
	TF_CS     = TFREGS + 3
	TF_RFLAGS = TFREGS + 4
	TF_RSP    = TFREGS + 5
	TF_SS     = TFREGS + 6
	TF_FL_IF  = 1 << 9
)

// interrupt vectors
const (
	TIMER    = 32
	SYSCALL  = 64
	TLBSHOOT = 70
)
