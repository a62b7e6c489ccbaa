// Package engine implements the request engine (C8): the dispatch table
// that maps each wire.RequestType to the handler that inspects and mutates
// process/thread state, reads the request's fields, and builds the
// response. It depends only on the interfaces below so internal/lifecycle
// can supply its own Process/Thread types without an import cycle.
package engine

import (
	"github.com/behrlich/udi-agent/internal/bpt"
	"github.com/behrlich/udi-agent/internal/memaccess"
	"github.com/behrlich/udi-agent/internal/udierr"
	"github.com/behrlich/udi-agent/internal/wire"
)

// ProcessPeer is the engine's view of the debuggee process: enough surface
// to service every process-scoped request.
type ProcessPeer interface {
	PID() int
	Arch() wire.Arch
	Breakpoints() *bpt.Table
	Memory() *memaccess.Accessor
	Threads() []ThreadPeer
	Thread(tid uint64) (ThreadPeer, bool)
	MultithreadCapable() bool

	// ContinueAuxAddr reports the address of the continue-past-breakpoint
	// auxiliary trap installed by the last continue past a hit user
	// breakpoint, if one is still pending reinstallation.
	ContinueAuxAddr() (addr uint64, ok bool)
	SetContinueAuxAddr(addr uint64, ok bool)
}

// ThreadPeer is the engine's view of a single thread.
type ThreadPeer interface {
	TID() uint64
	RunState() wire.ThreadState
	SetRunState(wire.ThreadState)
	Registers() *wire.RegisterContext

	// SingleStepAuxAddr reports the address of this thread's single-step
	// auxiliary trap, if single-stepping is currently enabled for it.
	SingleStepAuxAddr() (addr uint64, ok bool)
	SetSingleStepAuxAddr(addr uint64, ok bool)

	// PendingSignal is the signal number a continue request asked to
	// replay into the debuggee once the response has been written. The
	// caller driving the request loop (internal/lifecycle) reads this
	// after Continue returns and is responsible for the unix.Kill replay.
	PendingSignal() uint32
	SetPendingSignal(sig uint32)

	MarkedDead() bool
	// CompleteDeathHandshake finishes reporting this thread's death to the
	// debugger; invoked from a continue request that finds the thread
	// already marked dead, per spec.
	CompleteDeathHandshake() error
}

type procHandler func(p ProcessPeer, req *wire.Request) (*wire.Response, error)
type threadHandler func(p ProcessPeer, t ThreadPeer, req *wire.Request) (*wire.Response, error)

// Engine holds the process- and thread-scoped dispatch tables.
type Engine struct {
	procHandlers   map[wire.RequestType]procHandler
	threadHandlers map[wire.RequestType]threadHandler
}

// New builds an Engine with every request type wired to its handler. init
// is intentionally absent from both tables: spec requires it be accepted
// only once, during the handshake that internal/lifecycle drives directly,
// never through the steady-state dispatch loop.
func New() *Engine {
	e := &Engine{
		procHandlers:   make(map[wire.RequestType]procHandler),
		threadHandlers: make(map[wire.RequestType]threadHandler),
	}
	e.procHandlers[wire.ReqContinue] = handleContinue
	e.procHandlers[wire.ReqReadMemory] = handleReadMemory
	e.procHandlers[wire.ReqWriteMemory] = handleWriteMemory
	e.procHandlers[wire.ReqState] = handleState
	e.procHandlers[wire.ReqCreateBreakpoint] = handleCreateBreakpoint
	e.procHandlers[wire.ReqInstallBreakpoint] = handleInstallBreakpoint
	e.procHandlers[wire.ReqRemoveBreakpoint] = handleRemoveBreakpoint
	e.procHandlers[wire.ReqDeleteBreakpoint] = handleDeleteBreakpoint

	e.threadHandlers[wire.ReqReadRegister] = handleReadRegister
	e.threadHandlers[wire.ReqWriteRegister] = handleWriteRegister
	e.threadHandlers[wire.ReqThreadSuspend] = handleThreadSuspend
	e.threadHandlers[wire.ReqThreadResume] = handleThreadResume
	e.threadHandlers[wire.ReqNextInstruction] = handleNextInstruction
	e.threadHandlers[wire.ReqSingleStep] = handleSingleStep
	// state is valid on both the process channel and any thread channel
	// (spec §4.8): whichever channel it arrives on, the response is the
	// same process-wide (tid, state) list.
	e.threadHandlers[wire.ReqState] = func(p ProcessPeer, _ ThreadPeer, req *wire.Request) (*wire.Response, error) {
		return handleState(p, req)
	}
	return e
}

// DispatchProcess services a request sent on the process request channel.
func (e *Engine) DispatchProcess(p ProcessPeer, req *wire.Request) (*wire.Response, error) {
	h, ok := e.procHandlers[req.Type]
	if !ok {
		return nil, udierr.New("engine.DispatchProcess", udierr.ErrCodeUnknownRequest,
			req.Type.String()+" is not a process-scoped request this engine accepts here")
	}
	return h(p, req)
}

// DispatchThread services a request sent on a thread's request channel.
func (e *Engine) DispatchThread(p ProcessPeer, t ThreadPeer, req *wire.Request) (*wire.Response, error) {
	h, ok := e.threadHandlers[req.Type]
	if !ok {
		return nil, udierr.New("engine.DispatchThread", udierr.ErrCodeUnknownRequest,
			req.Type.String()+" is not a thread-scoped request this engine accepts here")
	}
	return h(p, t, req)
}
