//go:build linux && (amd64 || arm64)

package sigtrap

import (
	"fmt"
	"iter"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// trapWaiterTID is the thread id of the active trap's waiter thread, read
// by forwardHandler. Zero means no trap is active.
var trapWaiterTID uint64

// Trap is a scoped guard that blocks a set of signals at the mask level and
// surfaces them synchronously. While a Trap is live its whole set is blocked
// on the waiter thread and every member's disposition is the package's
// forwarding handler, so set members become pending instead of being
// dispatched or discarded — including signals that were previously ignored.
//
// New locks the calling goroutine to its OS thread; Wait, Next, Signals and
// Close must be called from that same goroutine. Close restores the saved
// dispositions and mask and must run on every exit path, so callers
// typically defer it immediately. Signals still pending at Close are
// delivered under the restored dispositions once the mask is restored.
//
// Only one Trap may be live in a process at a time; New panics while
// another Trap is live.
type Trap struct {
	set     signalSet
	tid     uint64
	oldMask signalSet
	oldActs []savedAction
	closed  bool
}

// New blocks the given signals, saving the prior mask, and installs the
// forwarding handler for each one, saving the prior dispositions. An empty
// set yields a no-op guard. Mask or handler installation can only fail on a
// corrupted signal environment, which is not recoverable; New panics with
// the OS error in that case.
func New(sigs ...Signal) *Trap {
	runtime.LockOSThread()

	t := &Trap{
		set: makeSignalSet(sigs...),
		tid: uint64(unix.Gettid()),
	}
	if !atomic.CompareAndSwapUint64(&trapWaiterTID, 0, t.tid) {
		runtime.UnlockOSThread()
		panic("sigtrap: a Trap is already live")
	}

	if errno := sigprocmask(sigBlock, &t.set, &t.oldMask); errno != 0 {
		panic(fmt.Sprintf("sigtrap: block signal mask: %v", errno))
	}

	act := newSigaction(addrOfForwardHandler(), t.set)
	for _, sig := range sigs {
		var saved savedAction
		saved.sig = sig
		if errno := rtSigaction(sig, &act, &saved.act); errno != 0 {
			panic(fmt.Sprintf("sigtrap: install handler for %v: %v", sig, errno))
		}
		t.oldActs = append(t.oldActs, saved)
	}

	return t
}

// Wait blocks until a signal in the trapped set is pending or the deadline
// passes, and consumes at most one pending signal. The reported signal when
// several are pending at once is whichever the kernel surfaces first; no
// ordering is guaranteed. The deadline is absolute so that callers looping
// over Wait do not accumulate timeout drift; the remaining timeout is
// recomputed on every internal retry. Returns ok == false when the deadline
// elapses with nothing pending.
func (t *Trap) Wait(deadline time.Time) (sig Signal, ok bool) {
	t.check()

	for {
		timeout := time.Until(deadline)
		if timeout < 0 {
			timeout = 0
		}
		ts := unix.NsecToTimespec(timeout.Nanoseconds())

		sig, errno := sigtimedwait(&t.set, &ts)
		switch errno {
		case 0:
			return sig, true
		case unix.EAGAIN:
			return 0, false
		case unix.EINTR:
			// Interrupted by a signal outside the set; retry with a
			// recomputed remaining timeout.
			continue
		default:
			panic(fmt.Sprintf("sigtrap: sigtimedwait: %v", errno))
		}
	}
}

// Next blocks indefinitely until a signal in the trapped set is pending and
// consumes it.
func (t *Trap) Next() Signal {
	t.check()

	for {
		sig, errno := sigtimedwait(&t.set, nil)
		switch errno {
		case 0:
			return sig
		case unix.EINTR:
			continue
		default:
			panic(fmt.Sprintf("sigtrap: sigtimedwait: %v", errno))
		}
	}
}

// Signals returns the trap as an unbounded blocking sequence: each step
// blocks until a trapped signal is pending, then yields it. The sequence
// never terminates on its own, and it is not replayable — consuming it
// drains real kernel signal state.
func (t *Trap) Signals() iter.Seq[Signal] {
	return func(yield func(Signal) bool) {
		for yield(t.Next()) {
		}
	}
}

// Close restores the disposition saved for each trapped signal, in the same
// order they were saved, then restores the saved signal mask, and unlocks
// the goroutine from its thread. Close is idempotent; a failure during
// restoration leaves the process's signal environment inconsistent and
// panics rather than being swallowed.
func (t *Trap) Close() {
	if t.closed {
		return
	}
	t.closed = true

	for _, saved := range t.oldActs {
		if errno := rtSigaction(saved.sig, &saved.act, nil); errno != 0 {
			panic(fmt.Sprintf("sigtrap: restore disposition for %v: %v", saved.sig, errno))
		}
	}
	if errno := sigprocmask(sigSetmask, &t.oldMask, nil); errno != 0 {
		panic(fmt.Sprintf("sigtrap: restore signal mask: %v", errno))
	}

	atomic.CompareAndSwapUint64(&trapWaiterTID, t.tid, 0)
	runtime.UnlockOSThread()
}

func (t *Trap) check() {
	if t.closed {
		panic("sigtrap: use of closed Trap")
	}
	if uint64(unix.Gettid()) != t.tid {
		panic("sigtrap: Wait and Next must run on the goroutine that created the Trap")
	}
}
