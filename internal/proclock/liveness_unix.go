//go:build unix

package proclock

import (
	"errors"

	"golang.org/x/sys/unix"
)

// probe sends signal 0, which checks existence without delivering anything.
// EPERM means the process exists but belongs to another user.
func probe(pid int) Liveness {
	err := unix.Kill(pid, 0)
	switch {
	case err == nil, errors.Is(err, unix.EPERM):
		return Alive
	case errors.Is(err, unix.ESRCH):
		return Dead
	default:
		return LivenessUnknown
	}
}
