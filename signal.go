//go:build linux && (amd64 || arm64)

package sigtrap

import (
	"strconv"

	"golang.org/x/sys/unix"
)

// Signal wraps an OS signal number to reduce confusion when building sets.
type Signal int

// Signal constants cover the signals supervisors commonly trap. Any valid
// signal number converts to a Signal directly.
const (
	SIGHUP  = Signal(unix.SIGHUP)
	SIGINT  = Signal(unix.SIGINT)
	SIGQUIT = Signal(unix.SIGQUIT)
	SIGABRT = Signal(unix.SIGABRT)
	SIGALRM = Signal(unix.SIGALRM)
	SIGTERM = Signal(unix.SIGTERM)
	SIGCHLD = Signal(unix.SIGCHLD)
	SIGCONT = Signal(unix.SIGCONT)
	SIGUSR1 = Signal(unix.SIGUSR1)
	SIGUSR2 = Signal(unix.SIGUSR2)
)

// sigMaximum is the highest signal number representable in a signalSet.
const sigMaximum = 64

func (s Signal) valid() bool {
	return s > 0 && s <= sigMaximum
}

func (s Signal) String() string {
	if name := unix.SignalName(unix.Signal(s)); name != "" {
		return name
	}
	return "signal " + strconv.Itoa(int(s))
}

// signalSet is a kernel sigset_t with one bit per signal.
type signalSet uint64

// sigsetSize is the sigsetsize argument passed to the rt_* signal syscalls.
const sigsetSize = 8

func makeSignalSet(sigs ...Signal) signalSet {
	var set signalSet
	for _, s := range sigs {
		if !s.valid() {
			panic("sigtrap: invalid signal number " + strconv.Itoa(int(s)))
		}
		set |= 1 << (uint(s) - 1)
	}
	return set
}

func (s signalSet) has(sig Signal) bool {
	return sig.valid() && s&(1<<(uint(sig)-1)) != 0
}
