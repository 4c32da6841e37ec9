//go:build linux && (amd64 || arm64)

package sigtrap

import (
	"fmt"
	"os"
	"sync/atomic"
)

// SetHandler installs the crash-exec handler as the disposition of every
// signal in sigs, in order. When one of those signals is delivered the
// handler replaces the process image in place with the staged command line
// (see SetCommandLine); it first compares the staged owner pid against the
// current pid, and if the process has forked since the configuration was
// staged it reports the mismatch on stderr and terminates with status 125
// instead of exec-ing a stale lineage. A failed exec is likewise fatal:
// diagnostic on stderr, status 127. File descriptors opened without
// close-on-exec leak into the new image; that is the caller's
// responsibility.
//
// Installation stops at the first OS-level failure and returns it; earlier
// signals in sigs remain installed, which the caller detects through the
// returned error.
//
// With avoidRace, the whole set is blocked before any handler is installed
// and unblocked only after every one is in place, closing the window where
// a second signal from the set could hit a prior disposition while
// installation is underway. That matters when the handler's target is the
// same program calling SetHandler again on startup: the re-executed image
// inherits the blocked set across execve, every thread it creates inherits
// it in turn, and the set stays blocked until its own SetHandler call
// unblocks it here. Install calls made at separate times do not get this
// protection against each other. On failure the set is left blocked.
//
// The handler's own signal mask always carries the full set, so a second
// set member arriving mid-handler is held until the exec completes.
func SetHandler(sigs []Signal, avoidRace bool) error {
	if atomic.LoadPointer(&execState) == nil {
		program, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve current executable: %w", err)
		}
		SetCommandLine(program, os.Args, os.Environ())
	}

	set := makeSignalSet(sigs...)
	if avoidRace {
		if errno := sigprocmask(sigBlock, &set, nil); errno != 0 {
			return fmt.Errorf("block signals during install: %w", errno)
		}
	}

	act := newSigaction(addrOfCrashHandler(), set)
	for _, sig := range sigs {
		if errno := rtSigaction(sig, &act, nil); errno != 0 {
			return fmt.Errorf("install crash handler for %v: %w", sig, errno)
		}
	}

	if avoidRace {
		if errno := sigprocmask(sigUnblock, &set, nil); errno != 0 {
			return fmt.Errorf("unblock signals after install: %w", errno)
		}
	}

	return nil
}
