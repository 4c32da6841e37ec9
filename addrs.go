//go:build linux && (amd64 || arm64)

package sigtrap

// The functions below are implemented in assembly; the handler bodies are
// never called from Go, only installed by address, because they run in
// signal-handler context where no Go code is legal. See handlers_amd64.s
// and handlers_arm64.s.

// forwardHandler re-raises a trapped signal at the trap's waiter thread.
func forwardHandler()

// crashHandler replaces the process image from the staged command line.
func crashHandler()

// addrOfForwardHandler returns the address of forwardHandler.
func addrOfForwardHandler() uintptr

// addrOfCrashHandler returns the address of crashHandler.
func addrOfCrashHandler() uintptr
