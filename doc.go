// Package sigtrap provides synchronous, race-free signal handling for
// process supervisors.
//
// The benefits of this over os/signal are kernel-level semantics: a Trap
// blocks its signal set at the mask level so signals stay pending instead of
// being dispatched asynchronously, and delivers them one at a time through
// blocking wait calls. A separate crash-exec handler re-executes the process
// image in place when a fatal signal arrives, so a supervisor survives
// unrecoverable internal errors instead of dying silently.
//
// The package is Linux-only (amd64 and arm64) and reaches around the Go
// runtime's signal machinery with raw rt_sigaction, rt_sigprocmask and
// rt_sigtimedwait calls. Code that runs in signal-handler context is written
// in assembly and restricted to direct syscalls.
package sigtrap
