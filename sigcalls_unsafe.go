//go:build linux && (amd64 || arm64)

package sigtrap

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sigprocmask manipulates the calling thread's signal mask. Either set or
// old may be nil; passing a nil set queries the current mask into old.
func sigprocmask(how uintptr, set, old *signalSet) syscall.Errno {
	_, _, errno := unix.RawSyscall6(unix.SYS_RT_SIGPROCMASK,
		how,
		uintptr(unsafe.Pointer(set)),
		uintptr(unsafe.Pointer(old)),
		sigsetSize, 0, 0)
	return errno
}

// rtSigaction installs act as sig's disposition and, when old is non-nil,
// records the prior disposition. Either pointer may be nil.
func rtSigaction(sig Signal, act, old *sigaction) syscall.Errno {
	_, _, errno := unix.RawSyscall6(unix.SYS_RT_SIGACTION,
		uintptr(sig),
		uintptr(unsafe.Pointer(act)),
		uintptr(unsafe.Pointer(old)),
		sigsetSize, 0, 0)
	return errno
}

// sigtimedwait blocks until a signal in set is pending and consumes it. A
// nil ts blocks indefinitely; a zeroed ts polls. The siginfo output is not
// requested; only the signal number is surfaced.
func sigtimedwait(set *signalSet, ts *unix.Timespec) (Signal, syscall.Errno) {
	sig, _, errno := unix.Syscall6(unix.SYS_RT_SIGTIMEDWAIT,
		uintptr(unsafe.Pointer(set)),
		0,
		uintptr(unsafe.Pointer(ts)),
		sigsetSize, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return Signal(sig), 0
}
