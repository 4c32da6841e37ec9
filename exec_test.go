//go:build linux && (amd64 || arm64)

package sigtrap

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

func TestUnitCommandLineLayout(t *testing.T) {
	// The assembly handler reads these fields by offset.
	var cl commandLine
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"program", unsafe.Offsetof(cl.program), 0},
		{"argv", unsafe.Offsetof(cl.argv), 8},
		{"envp", unsafe.Offsetof(cl.envp), 16},
		{"ownerPID", unsafe.Offsetof(cl.ownerPID), 24},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got offset %d for %s, want %d", tt.got, tt.name, tt.want)
		}
	}
}

func TestUnitBuildCommandLine(t *testing.T) {
	cl := buildCommandLine("/bin/echo", []string{"echo", "hi"}, []string{"A=1", "B=2"})

	if got, want := cl.ownerPID, int64(os.Getpid()); got != want {
		t.Errorf("got owner pid %d, want %d", got, want)
	}
	if got, want := string(cl.prog), "/bin/echo\x00"; got != want {
		t.Errorf("got program %q, want %q", got, want)
	}
	if got, want := cl.program, uintptr(unsafe.Pointer(&cl.prog[0])); got != want {
		t.Errorf("got program pointer %#x, want %#x", got, want)
	}

	if got, want := len(cl.argvArr), 3; got != want {
		t.Fatalf("got argv length %d, want %d", got, want)
	}
	if cl.argvArr[2] != 0 {
		t.Error("argv array should be NULL-terminated")
	}
	if got, want := string(cl.args[1]), "hi\x00"; got != want {
		t.Errorf("got argv[1] %q, want %q", got, want)
	}

	if got, want := len(cl.envpArr), 3; got != want {
		t.Fatalf("got envp length %d, want %d", got, want)
	}
	if cl.envpArr[2] != 0 {
		t.Error("envp array should be NULL-terminated")
	}
	if got, want := string(cl.envs[0]), "A=1\x00"; got != want {
		t.Errorf("got envp[0] %q, want %q", got, want)
	}
}

func TestUnitSetCommandLineSupersedes(t *testing.T) {
	defer atomic.StorePointer(&execState, nil)

	SetCommandLine("/bin/true", []string{"true"}, nil)
	first := atomic.LoadPointer(&execState)
	SetCommandLine("/bin/false", []string{"false"}, nil)
	second := atomic.LoadPointer(&execState)

	if first == second {
		t.Error("second configuration should replace the first")
	}
	if got, want := string((*commandLine)(second).prog), "/bin/false\x00"; got != want {
		t.Errorf("got program %q, want %q", got, want)
	}
}

func TestFuncSetHandlerInstallsAll(t *testing.T) {
	// Mask manipulation is per-thread state.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	sigs := []Signal{SIGHUP, SIGUSR1}
	saved := make([]sigaction, len(sigs))
	for i, sig := range sigs {
		saved[i] = currentAction(t, sig)
	}
	defer func() {
		for i, sig := range sigs {
			if errno := rtSigaction(sig, &saved[i], nil); errno != 0 {
				t.Fatalf("unexpected error restoring %v: %v", sig, errno)
			}
		}
		atomic.StorePointer(&execState, nil)
	}()

	if err := SetHandler(sigs, true); err != nil {
		t.Fatalf("unexpected error installing handlers: %v", err)
	}

	want := addrOfCrashHandler()
	wantMask := makeSignalSet(sigs...)
	for _, sig := range sigs {
		act := currentAction(t, sig)
		if act.handler != want {
			t.Errorf("got handler %#x for %v, want %#x", act.handler, sig, want)
		}
		if act.mask != wantMask {
			t.Errorf("got handler mask %#x for %v, want %#x", act.mask, sig, wantMask)
		}
	}

	// The set must not be left blocked after a successful install.
	mask := currentMask(t)
	for _, sig := range sigs {
		if mask.has(sig) {
			t.Errorf("%v should not remain blocked after install", sig)
		}
	}
}

func TestFuncSetHandlerDefaultCommandLine(t *testing.T) {
	defer atomic.StorePointer(&execState, nil)

	saved := currentAction(t, SIGUSR1)
	defer func() {
		if errno := rtSigaction(SIGUSR1, &saved, nil); errno != 0 {
			t.Fatalf("unexpected error restoring SIGUSR1: %v", errno)
		}
	}()

	if err := SetHandler([]Signal{SIGUSR1}, false); err != nil {
		t.Fatalf("unexpected error installing handler: %v", err)
	}

	cl := (*commandLine)(atomic.LoadPointer(&execState))
	if cl == nil {
		t.Fatal("wanted implicit command line, got none")
	}
	program, err := os.Executable()
	if err != nil {
		t.Fatalf("unexpected error resolving executable: %v", err)
	}
	if got, want := string(cl.prog), program+"\x00"; got != want {
		t.Errorf("got program %q, want %q", got, want)
	}
	if got, want := len(cl.argvArr), len(os.Args)+1; got != want {
		t.Errorf("got argv length %d, want %d", got, want)
	}
}

// Helper-process scenarios. A successful crash-exec replaces the test
// binary's image, so these run in child processes.

const helperEnv = "SIGTRAP_HELPER_MODE"

func runHelper(t *testing.T, mode string) (string, int) {
	t.Helper()

	cmd := exec.Command(os.Args[0], "-test.run=TestHelperProcess")
	cmd.Env = append(os.Environ(), helperEnv+"="+mode)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return string(out), 0
	}
	ee, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("unexpected error running helper %q: %v", mode, err)
	}
	return string(out), ee.ExitCode()
}

func TestHelperProcess(t *testing.T) {
	mode := os.Getenv(helperEnv)
	if mode == "" {
		return
	}

	switch mode {
	case "exec":
		SetCommandLine("/bin/echo", []string{"echo", "crash-exec replaced image"}, nil)
	case "supersede":
		SetCommandLine("/bin/echo", []string{"echo", "first"}, nil)
		SetCommandLine("/bin/echo", []string{"echo", "second"}, nil)
	case "forked":
		// Simulate a configuration staged before a fork: stage one owned
		// by a different pid.
		cl := buildCommandLine("/bin/echo", []string{"echo", "must not run"}, nil)
		cl.ownerPID++
		atomic.StorePointer(&execState, unsafe.Pointer(cl))
	case "execfail":
		SetCommandLine("/nonexistent/sigtrap-helper", []string{"x"}, nil)
	case "prearmed":
		// Make SIGUSR2 pending on this thread before the handler is
		// installed; the unblock at the end of SetHandler must deliver
		// it to the crash handler, not to the prior disposition.
		runtime.LockOSThread()
		SetCommandLine("/bin/echo", []string{"echo", "caught signal pending before install"}, nil)
		set := makeSignalSet(SIGUSR2)
		if errno := sigprocmask(sigBlock, &set, nil); errno != 0 {
			fmt.Fprintf(os.Stderr, "block: %v\n", errno)
			os.Exit(3)
		}
		if err := unix.Tgkill(unix.Getpid(), unix.Gettid(), unix.SIGUSR2); err != nil {
			fmt.Fprintf(os.Stderr, "raise: %v\n", err)
			os.Exit(3)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown helper mode %q\n", mode)
		os.Exit(3)
	}

	if err := SetHandler([]Signal{SIGUSR2}, true); err != nil {
		fmt.Fprintf(os.Stderr, "set handler: %v\n", err)
		os.Exit(3)
	}
	if err := unix.Kill(unix.Getpid(), unix.SIGUSR2); err != nil {
		fmt.Fprintf(os.Stderr, "raise: %v\n", err)
		os.Exit(3)
	}

	// The handler replaces or terminates this process; reaching the exit
	// below means the signal was never delivered.
	time.Sleep(5 * time.Second)
	os.Exit(4)
}

func TestFuncCrashExecReplacesImage(t *testing.T) {
	out, code := runHelper(t, "exec")

	if code != 0 {
		t.Fatalf("got exit code %d, output %q", code, out)
	}
	if got, want := out, "crash-exec replaced image\n"; got != want {
		t.Errorf("got output %q, want %q", got, want)
	}
}

func TestFuncCrashExecUsesLatestCommandLine(t *testing.T) {
	out, code := runHelper(t, "supersede")

	if code != 0 {
		t.Fatalf("got exit code %d, output %q", code, out)
	}
	if got, want := out, "second\n"; got != want {
		t.Errorf("got output %q, want %q", got, want)
	}
}

func TestFuncCrashExecSignalPendingBeforeInstall(t *testing.T) {
	out, code := runHelper(t, "prearmed")

	if code != 0 {
		t.Fatalf("got exit code %d, output %q", code, out)
	}
	if got, want := out, "caught signal pending before install\n"; got != want {
		t.Errorf("got output %q, want %q", got, want)
	}
}

func TestFuncCrashExecPostForkMismatch(t *testing.T) {
	out, code := runHelper(t, "forked")

	if got, want := code, 125; got != want {
		t.Errorf("got exit code %d, want %d", got, want)
	}
	if !strings.Contains(out, "never re-registered") {
		t.Errorf("got output %q, want post-fork diagnostic", out)
	}
	if strings.Contains(out, "must not run") {
		t.Error("stale configuration was exec-ed")
	}
}

func TestFuncCrashExecFailureIsFatal(t *testing.T) {
	out, code := runHelper(t, "execfail")

	if got, want := code, 127; got != want {
		t.Errorf("got exit code %d, want %d", got, want)
	}
	if !strings.Contains(out, "exec of crash command failed") {
		t.Errorf("got output %q, want exec failure diagnostic", out)
	}
	// The diagnostic names the signal and the OS error code.
	if !strings.Contains(out, "signal 12") || !strings.Contains(out, "errno 2") {
		t.Errorf("got output %q, want signal 12 and errno 2", out)
	}
}
