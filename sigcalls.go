//go:build linux && (amd64 || arm64)

package sigtrap

// Kernel ABI constants for the rt_* signal syscalls. Defined here rather
// than taken from x/sys so the handler install path and the assembly agree
// on one source of truth.
const (
	sigBlock   = 0 // SIG_BLOCK
	sigUnblock = 1 // SIG_UNBLOCK
	sigSetmask = 2 // SIG_SETMASK

	saOnStack  = 0x08000000 // SA_ONSTACK
	saRestart  = 0x10000000 // SA_RESTART
	saRestorer = 0x04000000 // SA_RESTORER
)

// sigaction mirrors the kernel's struct sigaction as consumed by
// rt_sigaction. Field order is part of the syscall ABI.
type sigaction struct {
	handler  uintptr
	flags    uint64
	restorer uintptr
	mask     signalSet
}

// savedAction is one (signal, prior disposition) pair recorded at trap time.
type savedAction struct {
	sig Signal
	act sigaction
}
