// Package udierr defines the structured error type and three-outcome model
// (success, failure, fatal) that every UDI runtime component reports
// through. A failure is recoverable and keeps the runtime serving requests;
// a fatal error disables the runtime and aborts the process.
package udierr

import (
	"errors"
	"fmt"
	"os/signal"

	"golang.org/x/sys/unix"
)

// Outcome classifies how a handler error should be surfaced to the wire
// protocol and whether the runtime may keep running afterward.
type Outcome int

const (
	// Success indicates no error occurred; handlers never construct an
	// *Error with this outcome, it exists only for API completeness.
	Success Outcome = iota

	// Failure covers invalid arguments, forbidden state transitions,
	// unknown registers, and missing breakpoints. Reported as an error
	// response; the runtime keeps serving requests.
	Failure

	// Fatal covers I/O failures, allocator failures, and a peer closing a
	// channel. Reported if possible, then the runtime disables itself and
	// aborts.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Code is a stable, wire-independent category for an Error. Code values are
// never serialized; they exist for errors.Is-style comparison and logging.
type Code string

const (
	ErrCodeProtocol           Code = "protocol violation"
	ErrCodeUnknownRequest     Code = "unknown request type"
	ErrCodeInvalidArgument    Code = "invalid argument"
	ErrCodeNoSuchBreakpoint   Code = "no such breakpoint"
	ErrCodeBreakpointExists   Code = "breakpoint already exists"
	ErrCodeUnknownRegister    Code = "unknown register"
	ErrCodeNotImplemented     Code = "not implemented"
	ErrCodeForbiddenState     Code = "forbidden state transition"
	ErrCodeNoSuchThread       Code = "no such thread"
	ErrCodeThreadNotSuspended Code = "thread not suspended"
	ErrCodeMemoryFault        Code = "memory access fault"
	ErrCodeIO                Code = "I/O error"
	ErrCodeAllocation         Code = "allocation failure"
	ErrCodePeerClosed         Code = "peer closed"
	ErrCodeTimeout            Code = "timeout"
)

// Error is the structured error every internal package returns. Op names
// the handler or stage that failed; Code classifies it; Errno carries the
// underlying kernel error when one exists.
type Error struct {
	Op      string        // operation that failed (e.g. "bpt.Install", "wire.Decode")
	Outcome Outcome       // Failure or Fatal
	Code    Code          // high-level error category
	Errno   unix.Errno    // kernel errno, 0 if not applicable
	Msg     string        // human-readable message
	Inner   error         // wrapped error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op == "" {
		return fmt.Sprintf("udi: %s", msg)
	}
	if e.Errno != 0 {
		return fmt.Sprintf("udi: %s: %s (errno=%d)", e.Op, msg, e.Errno)
	}
	return fmt.Sprintf("udi: %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports errors.Is comparison by Code, so callers can write
// errors.Is(err, &udierr.Error{Code: udierr.ErrCodeNoSuchBreakpoint}).
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// New creates a Failure-outcome error. Most handler-level validation errors
// use this constructor.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Outcome: Failure, Code: code, Msg: msg}
}

// NewFatal creates a Fatal-outcome error: the caller is expected to disable
// the runtime and call Abort after reporting it.
func NewFatal(op string, code Code, msg string) *Error {
	return &Error{Op: op, Outcome: Fatal, Code: code, Msg: msg}
}

// NewErrno wraps a kernel errno as a Fatal error, mapping it to a Code via
// mapErrnoToCode.
func NewErrno(op string, errno unix.Errno) *Error {
	return &Error{
		Op:      op,
		Outcome: Fatal,
		Code:    mapErrnoToCode(errno),
		Errno:   errno,
		Msg:     errno.Error(),
	}
}

// Wrap attaches op context to an existing error, preserving its Code,
// Errno, and Outcome if it is already a *Error. Otherwise it wraps it as a
// Fatal I/O error, since untyped errors reaching this boundary are almost
// always a channel or syscall failure.
func Wrap(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	var ue *Error
	if errors.As(inner, &ue) {
		return &Error{
			Op:      op,
			Outcome: ue.Outcome,
			Code:    ue.Code,
			Errno:   ue.Errno,
			Msg:     ue.Msg,
			Inner:   ue.Inner,
		}
	}
	var errno unix.Errno
	if errors.As(inner, &errno) {
		return &Error{Op: op, Outcome: Fatal, Code: mapErrnoToCode(errno), Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	return &Error{Op: op, Outcome: Fatal, Code: ErrCodeIO, Msg: inner.Error(), Inner: inner}
}

func mapErrnoToCode(errno unix.Errno) Code {
	switch errno {
	case unix.ENOENT:
		return ErrCodeNoSuchThread
	case unix.EINVAL, unix.E2BIG:
		return ErrCodeInvalidArgument
	case unix.ENOSYS, unix.EOPNOTSUPP:
		return ErrCodeNotImplemented
	case unix.EPIPE, unix.ECONNRESET:
		return ErrCodePeerClosed
	case unix.ENOMEM, unix.ENOSPC:
		return ErrCodeAllocation
	case unix.ETIMEDOUT:
		return ErrCodeTimeout
	case unix.EFAULT:
		return ErrCodeMemoryFault
	default:
		return ErrCodeIO
	}
}

// IsCode reports whether err is (or wraps) an *Error with the given Code.
func IsCode(err error, code Code) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code == code
	}
	return false
}

// IsFatal reports whether err is (or wraps) an *Error whose Outcome is
// Fatal. The request engine uses this to decide whether to disable the
// runtime after reporting a response.
func IsFatal(err error) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Outcome == Fatal
	}
	return false
}

// Abort performs the controlled abort described for internal assertion
// failures: it restores the default disposition for SIGABRT so that any
// handler the debuggee application installed cannot swallow the crash, then
// raises it against the calling process.
func Abort() {
	signal.Reset(unix.SIGABRT)
	_ = unix.Kill(unix.Getpid(), unix.SIGABRT)
}
