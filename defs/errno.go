package defs

const (
	EPERM     Err_t = 1
	ENOENT    Err_t = 2
	ESRCH     Err_t = 3
	EINTR     Err_t = 4
	EIO       Err_t = 5
	ECHILD    Err_t = 10
	EAGAIN    Err_t = 11
	ENOMEM    Err_t = 12
	EACCES    Err_t = 13
	EFAULT    Err_t = 14
	EBUSY     Err_t = 16
	EINVAL    Err_t = 22
	EPIPE     Err_t = 32
	ENOSYS    Err_t = 38
	EOPNOTSUPP Err_t = 95
	ENOTSUP         = EOPNOTSUPP
	ETIMEDOUT Err_t = 110
)

type Err_t int
