//go:build linux

package midiclock

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const realtimePriority = 80

type schedParam struct {
	priority int32
}

// setRealtimePriority moves the calling thread to SCHED_FIFO. It usually
// needs rtprio limits (e.g. membership of the audio group).
func setRealtimePriority() error {
	param := schedParam{priority: realtimePriority}

	_, _, errno := unix.Syscall(
		unix.SYS_SCHED_SETSCHEDULER,
		uintptr(0), // calling thread
		uintptr(unix.SCHED_FIFO),
		uintptr(unsafe.Pointer(&param)),
	)
	if errno != 0 {
		return errno
	}
	return nil
}
