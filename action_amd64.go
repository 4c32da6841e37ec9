//go:build linux

package sigtrap

// sigreturnStub is the rt_sigreturn trampoline used as SA_RESTORER; on
// amd64 the kernel provides no default return path for handlers installed
// through raw rt_sigaction. Implemented in handlers_amd64.s.
func sigreturnStub()

// addrOfSigreturn returns the address of sigreturnStub.
func addrOfSigreturn() uintptr

// newSigaction builds a sigaction for one of the package's raw handlers.
// The mask is applied while the handler runs.
func newSigaction(handler uintptr, mask signalSet) sigaction {
	return sigaction{
		handler:  handler,
		flags:    saOnStack | saRestart | saRestorer,
		restorer: addrOfSigreturn(),
		mask:     mask,
	}
}
