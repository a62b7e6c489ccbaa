// Package lifecycle implements the process and thread construction,
// handshake, and teardown paths (C9): it wires internal/transport,
// internal/bpt, internal/memaccess, internal/coordinator, internal/engine,
// internal/events, and internal/sigdispatch together into the concrete
// Process/Thread types those packages' interfaces were written against.
package lifecycle

import (
	"sync"
	"sync/atomic"

	"github.com/behrlich/udi-agent/internal/bpt"
	"github.com/behrlich/udi-agent/internal/coordinator"
	"github.com/behrlich/udi-agent/internal/engine"
	"github.com/behrlich/udi-agent/internal/events"
	"github.com/behrlich/udi-agent/internal/logging"
	"github.com/behrlich/udi-agent/internal/memaccess"
	"github.com/behrlich/udi-agent/internal/sigdispatch"
	"github.com/behrlich/udi-agent/internal/transport"
	"github.com/behrlich/udi-agent/internal/wire"
)

// Process is the runtime's single per-debuggee-process state: the
// filesystem channels, the breakpoint table and memory accessor shared by
// every thread, the thread registry, and the subsystems (coordinator,
// engine, event publisher, signal dispatcher) that operate on them.
type Process struct {
	pid    int
	arch   wire.Arch
	logger *logging.Logger

	layout *transport.Layout
	procReq  *transport.Channel
	procResp *transport.Channel
	events   *transport.Channel
	latch    *transport.PipeLatch
	mux      *transport.Multiplexer

	reqDec  *wire.Decoder
	respEnc *wire.Encoder

	bpt *bpt.Table
	mem *memaccess.Accessor

	coord      *coordinator.Coordinator
	engine     *engine.Engine
	publisher  *events.Publisher
	dispatcher *sigdispatch.Dispatcher

	mu          sync.RWMutex
	threads     map[uint64]*Thread
	mtCapable   bool
	contAuxAddr uint64
	contAuxSet  bool

	enabled atomic.Bool
	exiting atomic.Bool
}

// PID returns the debuggee process id.
func (p *Process) PID() int { return p.pid }

// Arch returns the debuggee's architecture.
func (p *Process) Arch() wire.Arch { return p.arch }

// Breakpoints returns the process-wide breakpoint table.
func (p *Process) Breakpoints() *bpt.Table { return p.bpt }

// Memory returns the process-wide memory accessor.
func (p *Process) Memory() *memaccess.Accessor { return p.mem }

// MultithreadCapable reports whether the runtime believes the debuggee can
// run more than one thread. The Go port sets this unconditionally true at
// Init, since the Go runtime is always prepared to schedule goroutines
// concurrently regardless of how many the application has started so far.
func (p *Process) MultithreadCapable() bool { return p.mtCapable }

// ContinueAuxAddr reports the pending continue-past-breakpoint auxiliary
// trap address, if one is installed.
func (p *Process) ContinueAuxAddr() (uint64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.contAuxAddr, p.contAuxSet
}

// SetContinueAuxAddr records or clears the pending continue-aux address.
func (p *Process) SetContinueAuxAddr(addr uint64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contAuxAddr, p.contAuxSet = addr, ok
}

// Threads returns every live thread as engine.ThreadPeer values.
func (p *Process) Threads() []engine.ThreadPeer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]engine.ThreadPeer, 0, len(p.threads))
	for _, t := range p.threads {
		out = append(out, t)
	}
	return out
}

// Thread looks up a single thread by id.
func (p *Process) Thread(tid uint64) (engine.ThreadPeer, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.threads[tid]
	return t, ok
}

// LivePeers implements coordinator.Registry: the same thread set, typed as
// coordinator.Peer.
func (p *Process) LivePeers() []coordinator.Peer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]coordinator.Peer, 0, len(p.threads))
	for _, t := range p.threads {
		out = append(out, t)
	}
	return out
}

// Enabled reports whether the runtime is still serving requests. A Fatal
// error anywhere in the request path disables it permanently.
func (p *Process) Enabled() bool { return p.enabled.Load() }

// Disable permanently stops the runtime from servicing further requests,
// per spec §7: a Fatal error is reported if possible and then the runtime
// aborts rather than risk operating on corrupted state.
func (p *Process) Disable() { p.enabled.Store(false) }

// Exiting reports whether the process-exit entry procedure has latched,
// per spec §4.9: once latched, the filesystem layout is removed only after
// the debugger's final continue has been serviced.
func (p *Process) Exiting() bool { return p.exiting.Load() }

// addThread registers a new thread under the process lock.
func (p *Process) addThread(t *Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.threads[t.tid] = t
}

// removeThread drops a dead thread's bookkeeping.
func (p *Process) removeThread(tid uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.threads, tid)
}
