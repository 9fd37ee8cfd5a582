package limits

type Syslimit_t struct {
	// protected by the process table lock
	Sysprocs int
	// protected by the futex table lock
	Futexes int
	// per-process joiner threads
	Joiners int
	// pipe buffer bytes
	Pipesz int
}

var Syslimit *Syslimit_t = MkSysLimit()

func MkSysLimit() *Syslimit_t {
	return &Syslimit_t{
		Sysprocs: 1e4,
		Futexes:  1024,
		Joiners:  256,
		Pipesz:   4096,
	}
}
