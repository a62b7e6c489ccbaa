// Package wire implements the CBOR-framed request/response/event codec
// that the runtime speaks over its process and thread channels.
package wire

// ProtocolVersion1 is the only protocol version this runtime speaks.
const ProtocolVersion1 uint32 = 1

// Arch identifies the debuggee's instruction set architecture, which
// determines which Register values are valid.
type Arch uint16

const (
	ArchX86 Arch = iota
	ArchX86_64
)

func (a Arch) String() string {
	switch a {
	case ArchX86:
		return "x86"
	case ArchX86_64:
		return "x86_64"
	default:
		return "unknown"
	}
}

// ThreadState mirrors the two-state model a thread can report in a state
// response.
type ThreadState uint16

const (
	ThreadRunning ThreadState = iota
	ThreadSuspended
)

// RequestType enumerates the request messages a debugger may send, in the
// same order as the original protocol's request enum so numeric values
// carried over a wire stay stable with prior tooling.
type RequestType uint8

const (
	ReqContinue RequestType = iota
	ReqReadMemory
	ReqWriteMemory
	ReqReadRegister
	ReqWriteRegister
	ReqState
	ReqInit
	ReqCreateBreakpoint
	ReqInstallBreakpoint
	ReqRemoveBreakpoint
	ReqDeleteBreakpoint
	ReqThreadSuspend
	ReqThreadResume
	ReqNextInstruction
	ReqSingleStep
	reqMax
)

func (r RequestType) String() string {
	if s, ok := requestNames[r]; ok {
		return s
	}
	return "invalid"
}

// Valid reports whether r is a known request type.
func (r RequestType) Valid() bool {
	return r < reqMax
}

var requestNames = map[RequestType]string{
	ReqContinue:          "continue",
	ReqReadMemory:        "read_memory",
	ReqWriteMemory:       "write_memory",
	ReqReadRegister:      "read_register",
	ReqWriteRegister:     "write_register",
	ReqState:             "state",
	ReqInit:              "init",
	ReqCreateBreakpoint:  "create_breakpoint",
	ReqInstallBreakpoint: "install_breakpoint",
	ReqRemoveBreakpoint:  "remove_breakpoint",
	ReqDeleteBreakpoint:  "delete_breakpoint",
	ReqThreadSuspend:     "suspend",
	ReqThreadResume:      "resume",
	ReqNextInstruction:   "next_instruction",
	ReqSingleStep:        "single_step",
}

// ProcessScoped reports whether r must be sent on the process request
// channel rather than a per-thread one.
func (r RequestType) ProcessScoped() bool {
	switch r {
	case ReqContinue, ReqReadMemory, ReqWriteMemory, ReqState, ReqInit,
		ReqCreateBreakpoint, ReqInstallBreakpoint, ReqRemoveBreakpoint, ReqDeleteBreakpoint:
		return true
	default:
		return false
	}
}

// ThreadScoped reports whether r must be sent on a thread request channel
// rather than the process one.
func (r RequestType) ThreadScoped() bool {
	switch r {
	case ReqReadRegister, ReqWriteRegister, ReqThreadSuspend, ReqThreadResume,
		ReqNextInstruction, ReqSingleStep:
		return true
	default:
		return false
	}
}

// ResponseType is the status byte every response tuple leads with.
type ResponseType uint8

const (
	RespError ResponseType = iota
	RespValid
)

func (r ResponseType) String() string {
	if r == RespValid {
		return "valid"
	}
	return "error"
}

// EventType enumerates the asynchronous events published on the events
// channel or a thread's response channel.
type EventType uint8

const (
	EventError EventType = iota
	EventSignal
	EventBreakpoint
	EventThreadCreate
	EventThreadDeath
	EventProcessExit
	EventProcessFork
	EventProcessExec
	EventSingleStep
	EventProcessCleanup
)

func (e EventType) String() string {
	if s, ok := eventNames[e]; ok {
		return s
	}
	return "unknown"
}

var eventNames = map[EventType]string{
	EventError:          "error",
	EventSignal:         "signal",
	EventBreakpoint:     "breakpoint",
	EventThreadCreate:   "thread_create",
	EventThreadDeath:    "thread_death",
	EventProcessExit:    "process_exit",
	EventProcessFork:    "process_fork",
	EventProcessExec:    "process_exec",
	EventSingleStep:     "single_step",
	EventProcessCleanup: "process_cleanup",
}

// SingleThreadID is the sentinel thread id events refer to in a
// single-threaded debuggee that never reports real per-thread identity.
const SingleThreadID uint64 = 0xC0FFEEABC
