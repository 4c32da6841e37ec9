//go:build linux

package sigtrap

// newSigaction builds a sigaction for one of the package's raw handlers.
// The mask is applied while the handler runs. No SA_RESTORER is set: on
// arm64 the kernel routes handler return through the vDSO sigtramp.
func newSigaction(handler uintptr, mask signalSet) sigaction {
	return sigaction{
		handler: handler,
		flags:   saOnStack | saRestart,
		mask:    mask,
	}
}
