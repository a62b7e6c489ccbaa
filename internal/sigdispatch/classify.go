package sigdispatch

import "golang.org/x/sys/unix"

// IsTrap reports whether sig is the breakpoint/single-step trap signal, as
// opposed to an application-originated or fault signal: a trap drives
// breakpoint/step event construction, anything else becomes a generic
// signal event. internal/lifecycle makes the same comparison inline.
func IsTrap(sig unix.Signal) bool {
	return sig == unix.SIGTRAP
}

// IsMemoryFault reports whether sig is one a recoverable C4 memory access
// can raise (an out-of-window read/write hitting an unmapped or protected
// page). The runtime does not consult it: a fault inside the runtime's own
// access window is recovered inside C4 as a Go panic and never reaches the
// dispatcher, so it is not published as an application signal.
func IsMemoryFault(sig unix.Signal) bool {
	return sig == unix.SIGSEGV || sig == unix.SIGBUS
}
