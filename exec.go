//go:build linux && (amd64 || arm64)

package sigtrap

import (
	"os"
	"sync/atomic"
	"unsafe"
)

// execState points at the live commandLine. crashHandler dereferences it
// with no further synchronization, so replacement must be a single atomic
// pointer store of a fully built configuration.
var execState unsafe.Pointer // *commandLine

// commandLine is one staged exec configuration: the raw C-layout views
// consumed by crashHandler plus the Go allocations backing them. The first
// four fields are read from assembly; their offsets are fixed.
type commandLine struct {
	program  uintptr // 0: NUL-terminated program path
	argv     uintptr // 8: NULL-terminated argument pointer array
	envp     uintptr // 16: NULL-terminated environment pointer array
	ownerPID int64   // 24: pid of the process that staged this configuration

	// Backing storage, never mutated once staged. Keeping it referenced
	// here keeps the addresses above valid for the configuration's life.
	prog    []byte
	args    [][]byte
	argvArr []uintptr
	envs    [][]byte
	envpArr []uintptr
}

func buildCommandLine(program string, args, env []string) *commandLine {
	cl := &commandLine{ownerPID: int64(os.Getpid())}

	cl.prog = cstring(program)
	cl.program = uintptr(unsafe.Pointer(&cl.prog[0]))

	cl.argvArr = make([]uintptr, len(args)+1)
	for i, a := range args {
		b := cstring(a)
		cl.args = append(cl.args, b)
		cl.argvArr[i] = uintptr(unsafe.Pointer(&b[0]))
	}
	cl.argv = uintptr(unsafe.Pointer(&cl.argvArr[0]))

	cl.envpArr = make([]uintptr, len(env)+1)
	for i, kv := range env {
		b := cstring(kv)
		cl.envs = append(cl.envs, b)
		cl.envpArr[i] = uintptr(unsafe.Pointer(&b[0]))
	}
	cl.envp = uintptr(unsafe.Pointer(&cl.envpArr[0]))

	return cl
}

func cstring(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

// SetCommandLine stages the command line and environment to exec into when
// a crash signal arrives. args is passed as argv verbatim, so args[0] is
// conventionally the program name; it is not derived from program. env is a
// list of KEY=VALUE entries handed to the new image in order with no
// merging of the ambient environment. Repeated calls replace the previous
// configuration atomically: a handler firing concurrently sees either the
// old or the new configuration, never a mix. If SetCommandLine is never
// called, SetHandler captures the current process's own executable,
// arguments and environment.
func SetCommandLine(program string, args []string, env []string) {
	cl := buildCommandLine(program, args, env)
	atomic.StorePointer(&execState, unsafe.Pointer(cl))
}

// execTexts holds the diagnostic fragments crashHandler writes to stderr
// before terminating, as pointer/length pairs. Field offsets are relied
// upon by the assembly.
var execTexts struct {
	execFail    uintptr // 0
	execFailLen uintptr // 8
	forkMism    uintptr // 16
	forkMismLen uintptr // 24
	errnoSep    uintptr // 32
	errnoSepLen uintptr // 40
	newline     uintptr // 48
	newlineLen  uintptr // 56
}

var (
	execFailText = []byte("sigtrap: exec of crash command failed: signal ")
	forkMismText = []byte("sigtrap: crash handler fired in a forked process that never re-registered: signal ")
	errnoSepText = []byte(", errno ")
	newlineText  = []byte("\n")
)

func init() {
	execTexts.execFail = uintptr(unsafe.Pointer(&execFailText[0]))
	execTexts.execFailLen = uintptr(len(execFailText))
	execTexts.forkMism = uintptr(unsafe.Pointer(&forkMismText[0]))
	execTexts.forkMismLen = uintptr(len(forkMismText))
	execTexts.errnoSep = uintptr(unsafe.Pointer(&errnoSepText[0]))
	execTexts.errnoSepLen = uintptr(len(errnoSepText))
	execTexts.newline = uintptr(unsafe.Pointer(&newlineText[0]))
	execTexts.newlineLen = uintptr(len(newlineText))
}
