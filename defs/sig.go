package defs

// signal numbers
const (
	SIGHUP    = 1
	SIGINT    = 2
	SIGQUIT   = 3
	SIGILL    = 4
	SIGTRAP   = 5
	SIGABRT   = 6
	SIGBUS    = 7
	SIGFPE    = 8
	SIGKILL   = 9
	SIGUSR1   = 10
	SIGSEGV   = 11
	SIGUSR2   = 12
	SIGPIPE   = 13
	SIGALRM   = 14
	SIGTERM   = 15
	SIGCHLD   = 17
	SIGCONT   = 18
	SIGSTOP   = 19
	SIGTSTP   = 20
	SIGTTIN   = 21
	SIGTTOU   = 22
	SIGURG    = 23
	SIGXCPU   = 24
	SIGXFSZ   = 25
	SIGVTALRM = 26
	SIGPROF   = 27
	SIGWINCH  = 28
	SIGPOLL   = 29
	SIGSYS    = 31

	NSIG = 32
)

// signal dispositions. a signal table handler holding one of these sentinels
// names an action; anything larger is a userspace handler address.
const (
	SIG_DFL        uintptr = 0
	ACT_TERMINATE  uintptr = 1
	ACT_CORE       uintptr = 2
	ACT_IGNORE     uintptr = 3
	ACT_STOP       uintptr = 4
	ACT_CONTINUE   uintptr = 5
	act_max        uintptr = 5
)

// Isaction distinguishes action sentinels from user handler addresses.
func Isaction(h uintptr) bool {
	return h <= act_max
}

// sigaction flags
const (
	SA_RESETHAND = 0x80000000
)

// sigprocmask operations
const (
	SIG_BLOCK   = 0
	SIG_UNBLOCK = 1
	SIG_SETMASK = 2
)

func Sigbit(sig int) uint32 {
	return 1 << uint(sig)
}

// Sigunblockable covers the signals the blocked set can never mask.
func Sigunblockable(sig int) bool {
	return sig == SIGKILL || sig == SIGSTOP
}

// default-action table. no entry resolves to SIG_DFL; the dispatcher treats
// that as corruption.
var Sigdfl = [NSIG]uintptr{
	SIGHUP:    ACT_TERMINATE,
	SIGINT:    ACT_TERMINATE,
	SIGQUIT:   ACT_CORE,
	SIGILL:    ACT_CORE,
	SIGTRAP:   ACT_CORE,
	SIGABRT:   ACT_CORE,
	SIGBUS:    ACT_CORE,
	SIGFPE:    ACT_CORE,
	SIGKILL:   ACT_TERMINATE,
	SIGUSR1:   ACT_TERMINATE,
	SIGSEGV:   ACT_CORE,
	SIGUSR2:   ACT_TERMINATE,
	SIGPIPE:   ACT_TERMINATE,
	SIGALRM:   ACT_TERMINATE,
	SIGTERM:   ACT_TERMINATE,
	16:        ACT_TERMINATE,
	SIGCHLD:   ACT_IGNORE,
	SIGCONT:   ACT_CONTINUE,
	SIGSTOP:   ACT_STOP,
	SIGTSTP:   ACT_STOP,
	SIGTTIN:   ACT_STOP,
	SIGTTOU:   ACT_STOP,
	SIGURG:    ACT_IGNORE,
	SIGXCPU:   ACT_CORE,
	SIGXFSZ:   ACT_CORE,
	SIGVTALRM: ACT_TERMINATE,
	SIGPROF:   ACT_TERMINATE,
	SIGWINCH:  ACT_IGNORE,
	SIGPOLL:   ACT_TERMINATE,
	30:        ACT_TERMINATE,
	SIGSYS:    ACT_CORE,
}
