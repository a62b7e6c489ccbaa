// Package constants holds the small set of fixed values the runtime needs
// before any configuration is read: environment variable names, filesystem
// layout names, protocol limits, and the handful of timing constants the
// handshake and teardown paths rely on.
package constants

import (
	"time"

	"golang.org/x/sys/unix"
)

// Environment variables read once at Init.
const (
	// EnvRootDir overrides the filesystem root the runtime creates its
	// per-process directory under.
	EnvRootDir = "UDI_ROOT_DIR"

	// EnvDebug enables verbose stderr logging when set to any value.
	EnvDebug = "UDI_DEBUG"
)

// DefaultRootDir is used when UDI_ROOT_DIR is unset.
const DefaultRootDir = "/tmp/udi"

// Fixed channel file names under <root>/<pid>/ and <root>/<pid>/<hex-tid>/.
const (
	RequestFileName  = "request"
	ResponseFileName = "response"
	EventsFileName   = "events"
)

// FIFO and directory permissions: owner-and-group rwx. The FIFO itself has
// no executable semantics; the bit is kept for parity with the directories
// that share the same mode.
const (
	DirMode  = 0770
	FifoMode = 0770
)

// BreakpointTableBuckets is the fixed bucket count for the address-hashed
// breakpoint table: a fixed-size open hash with 256 buckets.
const BreakpointTableBuckets = 256

// TrapInstruction is the x86/x86-64 single-byte software breakpoint opcode
// (INT3) patched into the debuggee's own text pages.
const TrapInstruction = 0xCC

// MaxSavedBreakpointBytes bounds how many original instruction bytes a
// breakpoint can save: up to eight.
const MaxSavedBreakpointBytes = 8

// Sentinel is the fixed byte written across thread-barrier and control
// pipes. Any other byte observed on those pipes is a protocol violation.
const Sentinel byte = 0x55

// Handshake and FIFO-open timing. The debuggee's constructor can observe the
// debugger racing to open its end of each FIFO; these bound that race the
// same way the teacher bounds udev's char-device creation race.
const (
	// FIFOOpenRetryDelay is the pause between attempts to open a FIFO whose
	// peer has not yet opened its end.
	FIFOOpenRetryDelay = 20 * time.Millisecond

	// FIFOOpenMaxRetries bounds the open race before giving up.
	FIFOOpenMaxRetries = 250 // ~5s total

	// ThreadDeathDrainTimeout is a bound for a dying thread's handshake.
	// Nothing in the runtime applies it: continue completes each dead
	// thread's handshake without a timeout.
	ThreadDeathDrainTimeout = 2 * time.Second
)

// ThreadSuspendSignal is the signal the control thread raises against a
// running peer to drive it into the signal dispatcher so it can be parked.
// SIGURG is chosen because the Go runtime itself reserves it for internal
// preemption on most platforms but application code essentially never
// installs a handler for it, minimizing the chance of colliding with a
// signal the debuggee's own application cares about.
const ThreadSuspendSignal = unix.SIGURG

// CatchableSignals is the full signal list the dispatcher installs a
// handler for, per spec §4.6.
var CatchableSignals = []unix.Signal{
	unix.SIGHUP, unix.SIGINT, unix.SIGQUIT, unix.SIGILL, unix.SIGTRAP,
	unix.SIGABRT, unix.SIGBUS, unix.SIGFPE, unix.SIGUSR1, unix.SIGSEGV,
	unix.SIGUSR2, unix.SIGPIPE, unix.SIGALRM, unix.SIGTERM, unix.SIGSTKFLT,
	unix.SIGCHLD, unix.SIGCONT, unix.SIGTSTP, unix.SIGTTIN, unix.SIGTTOU,
	unix.SIGURG, unix.SIGXCPU, unix.SIGXFSZ, unix.SIGVTALRM, unix.SIGPROF,
	unix.SIGWINCH, unix.SIGIO, unix.SIGPWR, unix.SIGSYS,
}