package engine

import (
	"github.com/behrlich/udi-agent/internal/cfs"
	"github.com/behrlich/udi-agent/internal/udierr"
	"github.com/behrlich/udi-agent/internal/wire"
)

func handleReadRegister(p ProcessPeer, t ThreadPeer, req *wire.Request) (*wire.Response, error) {
	reg, _ := req.Fields["reg"].(uint16)
	r := wire.Register(reg)
	if !r.ValidFor(p.Arch()) {
		return nil, udierr.New("engine.handleReadRegister", udierr.ErrCodeUnknownRegister,
			"register does not belong to this architecture")
	}
	if r.IsFloatingPoint() {
		return nil, udierr.New("engine.handleReadRegister", udierr.ErrCodeNotImplemented,
			"floating-point register access is not implemented")
	}

	regs := t.Registers()
	if !regs.Valid {
		return nil, udierr.New("engine.handleReadRegister", udierr.ErrCodeForbiddenState,
			"thread has no captured register context")
	}
	v, ok := regs.Get(r)
	if !ok {
		return nil, udierr.New("engine.handleReadRegister", udierr.ErrCodeUnknownRegister, "unknown register")
	}
	return wire.NewValidResponse(wire.ReqReadRegister, map[string]any{"value": v}), nil
}

func handleWriteRegister(p ProcessPeer, t ThreadPeer, req *wire.Request) (*wire.Response, error) {
	reg, _ := req.Fields["reg"].(uint16)
	value, _ := req.Fields["value"].(uint64)
	r := wire.Register(reg)
	if !r.ValidFor(p.Arch()) {
		return nil, udierr.New("engine.handleWriteRegister", udierr.ErrCodeUnknownRegister,
			"register does not belong to this architecture")
	}
	if r.IsFloatingPoint() {
		return nil, udierr.New("engine.handleWriteRegister", udierr.ErrCodeNotImplemented,
			"floating-point register access is not implemented")
	}

	regs := t.Registers()
	if !regs.Valid {
		return nil, udierr.New("engine.handleWriteRegister", udierr.ErrCodeForbiddenState,
			"thread has no captured register context")
	}
	if !regs.Set(r, value) {
		return nil, udierr.New("engine.handleWriteRegister", udierr.ErrCodeUnknownRegister, "unknown register")
	}
	return wire.NewValidResponse(wire.ReqWriteRegister, nil), nil
}

// handleThreadSuspend flips this thread's bookkeeping to suspended. Parking
// it on its control pipe is internal/coordinator's job, driven by
// internal/lifecycle once this response has gone out — the engine only
// owns the debugger-visible state bit, not the park/release mechanics.
func handleThreadSuspend(_ ProcessPeer, t ThreadPeer, _ *wire.Request) (*wire.Response, error) {
	t.SetRunState(wire.ThreadSuspended)
	return wire.NewValidResponse(wire.ReqThreadSuspend, nil), nil
}

func handleThreadResume(_ ProcessPeer, t ThreadPeer, _ *wire.Request) (*wire.Response, error) {
	t.SetRunState(wire.ThreadRunning)
	return wire.NewValidResponse(wire.ReqThreadResume, nil), nil
}

func handleNextInstruction(p ProcessPeer, t ThreadPeer, _ *wire.Request) (*wire.Response, error) {
	regs := t.Registers()
	if !regs.Valid {
		return nil, udierr.New("engine.handleNextInstruction", udierr.ErrCodeForbiddenState,
			"thread has no captured register context")
	}
	addr, err := cfs.Successor(regs.PC, regs, p.Arch(), p.Memory())
	if err != nil {
		return nil, err
	}
	return wire.NewValidResponse(wire.ReqNextInstruction, map[string]any{"addr": addr}), nil
}

// handleSingleStep enables or disables single-stepping for this thread by
// installing or removing an auxiliary breakpoint at the computed control-
// flow successor of the current PC. Disabling single-stepping always
// removes any aux breakpoint still installed for this thread, even if the
// caller asks to disable a step that was never enabled — matching the
// idempotent remove semantics bpt.Table already gives Delete.
//
// The response's "value" field is the *previous* setting, not the new one
// (spec §6: "single_step→{value:bool} (previous setting)"), matching
// udirt-msg.c's prev_setting := is_single_step(thr) captured before the
// mutation.
func handleSingleStep(p ProcessPeer, t ThreadPeer, req *wire.Request) (*wire.Response, error) {
	enable, _ := req.Fields["value"].(bool)

	existing, wasEnabled := t.SingleStepAuxAddr()
	if wasEnabled {
		if err := p.Breakpoints().Delete(existing); err != nil && !udierr.IsCode(err, udierr.ErrCodeNoSuchBreakpoint) {
			return nil, err
		}
		t.SetSingleStepAuxAddr(0, false)
	}

	if !enable {
		return wire.NewValidResponse(wire.ReqSingleStep, map[string]any{"value": wasEnabled}), nil
	}

	regs := t.Registers()
	if !regs.Valid {
		return nil, udierr.New("engine.handleSingleStep", udierr.ErrCodeForbiddenState,
			"thread has no captured register context")
	}
	addr, err := cfs.Successor(regs.PC, regs, p.Arch(), p.Memory())
	if err != nil {
		return nil, err
	}
	p.Breakpoints().Create(addr)
	if err := p.Breakpoints().Install(addr); err != nil {
		return nil, err
	}
	t.SetSingleStepAuxAddr(addr, true)
	return wire.NewValidResponse(wire.ReqSingleStep, map[string]any{"value": wasEnabled}), nil
}
