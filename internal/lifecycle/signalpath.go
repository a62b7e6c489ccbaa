package lifecycle

import (
	"golang.org/x/sys/unix"

	"github.com/behrlich/udi-agent/internal/cfs"
	"github.com/behrlich/udi-agent/internal/constants"
	"github.com/behrlich/udi-agent/internal/udierr"
	"github.com/behrlich/udi-agent/internal/wire"
)

// Checkpoint is the cooperative breakpoint trap site: the embedding
// application calls it (directly, or through a wrapped call the generated
// example demonstrates) at the point it wants the runtime to notice a hit
// user breakpoint. regs is the caller's own best-effort register snapshot
// at the checkpoint's PC.
//
// A genuine debugger ordinarily learns of a trap from the kernel itself
// (a real `int3` raised by the patched byte, delivered as SIGTRAP to the
// exact OS thread that executed it). Go's os/signal funnels every caught
// signal through one dispatcher goroutine with no way to recover which
// locked-OS-thread goroutine actually raised it, so this port cannot
// reconstruct that attribution from a signal alone (see internal/sigdispatch's
// package doc). Checkpoint sidesteps the problem: it runs on the caller's
// own goroutine, so "which thread hit the breakpoint" is never in doubt.
// bpt.Table.Install still patches the real 0xCC byte into the debuggee's
// text, matching spec's breakpoint-table contract; Checkpoint is simply how
// this port learns the trap fired without a raw sigaction handler.
func (t *Thread) Checkpoint(regs wire.RegisterContext) error {
	if !t.proc.Enabled() {
		return nil
	}

	t.mu.Lock()
	regs.Valid = true
	t.regs = regs
	t.mu.Unlock()

	bp := t.proc.bpt.Lookup(regs.PC)
	if bp == nil || !bp.InMemory {
		return nil
	}
	return t.proc.enterSignalPath(t, unix.SIGTRAP, regs.PC)
}

// signalHandler is the sigdispatch.Handler wired at Install time: it
// attributes every asynchronous (non-breakpoint) caught signal to the
// process's designated default thread, a documented limitation of
// attributing signals without cgo (see internal/sigdispatch's package doc
// and Checkpoint's above). The suspend signal itself (raised by
// internal/coordinator's BlockOtherThreads against running peers) needs no
// handling here: its only job is to interrupt a blocking syscall so the
// peer's own control-pipe Park call is reached, which internal/coordinator
// already drives directly.
func (p *Process) signalHandler(sig unix.Signal) bool {
	// Spec §4.6 step 1 / §7: once the runtime has disabled itself (a fatal
	// internal error, or a broken response/events channel discovered at the
	// last continue), it stops claiming signals so the debuggee runs to
	// completion unattended instead of being interfered with further.
	if !p.Enabled() {
		return false
	}
	if sig == constants.ThreadSuspendSignal {
		return true
	}
	self := p.defaultThread()
	if self == nil {
		return false
	}
	if err := p.enterSignalPath(self, sig, 0); err != nil {
		p.logger.Error("lifecycle: signal entry procedure failed", "error", err)
		return false
	}
	return true
}

// defaultThread returns the lowest-tid live thread, the process's stand-in
// target for signals that cannot be attributed to a specific thread.
func (p *Process) defaultThread() *Thread {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var best *Thread
	for _, t := range p.threads {
		if best == nil || t.tid < best.tid {
			best = t
		}
	}
	return best
}

// enterSignalPath implements the spec §4.6 entry procedure: block every
// other thread, publish the triggering event, service debugger requests
// until a continue arrives, then release everyone else.
func (p *Process) enterSignalPath(self *Thread, sig unix.Signal, addr uint64) error {
	won, err := p.coord.BlockOtherThreads(self)
	if err != nil {
		return err
	}
	if !won {
		// Lost the race: BlockOtherThreads already parked this goroutine on
		// its own control pipe and has now released it.
		self.SetRunState(wire.ThreadRunning)
		return nil
	}

	fields := map[string]any{}
	evType := wire.EventSignal
	if sig == unix.SIGTRAP {
		evType = wire.EventBreakpoint
		fields["addr"] = addr
		p.armContinueAux(self, addr)
	} else {
		fields["addr"] = addr
		fields["sig"] = uint32(sig)
	}

	if err := p.publisher.Publish(evType, self.tid, fields); err != nil {
		p.Disable()
		udierr.Abort()
		return err
	}

	return p.serveUntilContinue(self)
}

// armContinueAux installs the one-instruction-past auxiliary breakpoint a
// subsequent continue will need to step past the just-hit user breakpoint,
// computed via the control-flow successor (C5). A CFS failure is
// non-fatal: continue simply has nothing to reinstall.
func (p *Process) armContinueAux(self *Thread, addr uint64) {
	regs := self.Registers()
	next, err := cfs.Successor(addr, regs, p.arch, p.mem)
	if err != nil {
		return
	}
	if err := p.bpt.RemoveForContinue(addr); err != nil {
		return
	}
	p.bpt.Create(next)
	if err := p.bpt.Install(next); err != nil {
		return
	}
	p.SetContinueAuxAddr(next, true)
}
