package lifecycle

import (
	"sync"

	"github.com/behrlich/udi-agent/internal/coordinator"
	"github.com/behrlich/udi-agent/internal/transport"
	"github.com/behrlich/udi-agent/internal/wire"
)

// Thread is the runtime's per-thread state: the locked-OS-thread goroutine
// running the application's own code (see SPEC_FULL.md §5 for why this
// port maps "thread" to a runtime.LockOSThread-pinned goroutine rather
// than a bare one), its private request/response channels, its control
// pipe, and the register snapshot the signal dispatcher reconstructs at a
// trap site.
type Thread struct {
	tid  uint64
	proc *Process

	reqCh  *transport.Channel
	respCh *transport.Channel
	reqDec *wire.Decoder
	respEnc *wire.Encoder

	pipe *coordinator.ControlPipe

	mu             sync.Mutex
	state          wire.ThreadState
	regs           wire.RegisterContext
	pendingSig     uint32
	dead           bool
	controlThread  bool
	pendingHandoff bool
	stepAuxAddr    uint64
	stepAuxSet     bool
}

// TID returns the thread id (this port's goroutine id, see
// internal/logging's goid use for the same identity source).
func (t *Thread) TID() uint64 { return t.tid }

// RunState reports whether the debugger currently sees this thread as
// running or suspended.
func (t *Thread) RunState() wire.ThreadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetRunState updates the debugger-visible run state.
func (t *Thread) SetRunState(s wire.ThreadState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// Registers returns a pointer to this thread's captured register context.
// Callers must hold no expectation of concurrent safety across goroutines
// beyond the "one control thread at a time" contract internal/coordinator
// already enforces upstream of every engine dispatch.
func (t *Thread) Registers() *wire.RegisterContext {
	return &t.regs
}

// SingleStepAuxAddr reports the address of this thread's single-step
// auxiliary breakpoint, if single-stepping is enabled.
func (t *Thread) SingleStepAuxAddr() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stepAuxAddr, t.stepAuxSet
}

// SetSingleStepAuxAddr records or clears the single-step aux address.
func (t *Thread) SetSingleStepAuxAddr(addr uint64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stepAuxAddr, t.stepAuxSet = addr, ok
}

// PendingSignal is the signal a continue request asked to replay once the
// response has been written.
func (t *Thread) PendingSignal() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pendingSig
}

// SetPendingSignal records the replay signal for the request loop to pick
// up after writing the continue response.
func (t *Thread) SetPendingSignal(sig uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingSig = sig
}

// MarkedDead reports whether this thread has reported its own death and is
// waiting for a continue to complete the handshake.
func (t *Thread) MarkedDead() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dead
}

// markDead flags the thread as dead; called from the thread's own exit
// path before it publishes a thread_death event. The exit path does not
// park afterwards: the handshake is completed by the next continue.
func (t *Thread) markDead() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dead = true
}

// CompleteDeathHandshake tears down this thread's channels and removes it
// from the process registry, finishing what a continue request that found
// it marked dead started.
func (t *Thread) CompleteDeathHandshake() error {
	if t.reqCh != nil {
		t.reqCh.Close()
	}
	if t.respCh != nil {
		t.respCh.Close()
	}
	if t.pipe != nil {
		t.pipe.Close()
	}
	if err := t.proc.layout.RemoveThreadDirs(t.tid); err != nil {
		return err
	}
	t.proc.mux.Remove(threadMuxKey(t.tid))
	t.proc.removeThread(t.tid)
	return nil
}

// IsControlThread reports whether this thread currently holds the "one
// control thread at a time" token.
func (t *Thread) IsControlThread() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.controlThread
}

// SetControlThread sets or clears the control-thread token.
func (t *Thread) SetControlThread(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.controlThread = v
}

// PendingHandoff reports whether this thread needs to become the control
// thread next: a queued external signal, or its own in-flight death
// report.
func (t *Thread) PendingHandoff() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pendingHandoff || t.dead
}

// SetPendingHandoff marks or clears an external handoff request for this
// thread.
func (t *Thread) SetPendingHandoff(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingHandoff = v
}

// Pipe returns this thread's private control pipe.
func (t *Thread) Pipe() *coordinator.ControlPipe { return t.pipe }
