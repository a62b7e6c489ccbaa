package engine

import (
	"github.com/behrlich/udi-agent/internal/udierr"
	"github.com/behrlich/udi-agent/internal/wire"
)

// handleContinue implements the continue request. It is rejected outright
// if every thread in the process is already suspended: with nothing left
// running, there is no thread left to eventually re-enter the runtime and
// drive a future request, so the debugger is expected to resume at least
// one thread first. Otherwise it reinstalls any pending continue-aux
// breakpoint, finishes the death handshake for threads marked dead, and
// records the requested replay signal on every running thread;
// internal/lifecycle delivers the one recorded on the thread that serviced
// the continue once the response has gone out.
func handleContinue(p ProcessPeer, req *wire.Request) (*wire.Response, error) {
	threads := p.Threads()
	allSuspended := true
	for _, t := range threads {
		if t.RunState() != wire.ThreadSuspended {
			allSuspended = false
			break
		}
	}
	if allSuspended && len(threads) > 0 {
		return nil, udierr.New("engine.handleContinue", udierr.ErrCodeForbiddenState,
			"cannot continue: every thread in the process is suspended")
	}

	if addr, ok := p.ContinueAuxAddr(); ok {
		if err := p.Breakpoints().ReinstallAfterContinue(addr); err != nil {
			return nil, err
		}
		p.SetContinueAuxAddr(0, false)
	}

	for _, t := range threads {
		if !t.MarkedDead() {
			continue
		}
		if err := t.CompleteDeathHandshake(); err != nil {
			return nil, err
		}
	}

	sig, _ := req.Fields["sig"].(uint32)
	for _, t := range threads {
		if t.RunState() == wire.ThreadRunning {
			t.SetPendingSignal(sig)
		}
	}

	return wire.NewValidResponse(wire.ReqContinue, nil), nil
}

func handleReadMemory(p ProcessPeer, req *wire.Request) (*wire.Response, error) {
	addr, _ := req.Fields["addr"].(uint64)
	length, _ := req.Fields["len"].(uint32)

	data, err := p.Memory().Read(uintptr(addr), int(length))
	if err != nil {
		return nil, err
	}
	return wire.NewValidResponse(wire.ReqReadMemory, map[string]any{"data": data}), nil
}

func handleWriteMemory(p ProcessPeer, req *wire.Request) (*wire.Response, error) {
	addr, _ := req.Fields["addr"].(uint64)
	data, _ := req.Fields["data"].([]byte)

	if err := p.Memory().Write(uintptr(addr), data); err != nil {
		return nil, err
	}
	return wire.NewValidResponse(wire.ReqWriteMemory, nil), nil
}

func handleState(p ProcessPeer, _ *wire.Request) (*wire.Response, error) {
	threads := p.Threads()
	states := make([]wire.ThreadStateEntry, len(threads))
	for i, t := range threads {
		states[i] = wire.ThreadStateEntry{TID: t.TID(), State: t.RunState()}
	}
	return wire.NewValidResponse(wire.ReqState, map[string]any{"states": states}), nil
}

func handleCreateBreakpoint(p ProcessPeer, req *wire.Request) (*wire.Response, error) {
	addr, _ := req.Fields["addr"].(uint64)
	p.Breakpoints().Create(addr)
	return wire.NewValidResponse(wire.ReqCreateBreakpoint, nil), nil
}

func handleInstallBreakpoint(p ProcessPeer, req *wire.Request) (*wire.Response, error) {
	addr, _ := req.Fields["addr"].(uint64)
	if err := p.Breakpoints().Install(addr); err != nil {
		return nil, err
	}
	return wire.NewValidResponse(wire.ReqInstallBreakpoint, nil), nil
}

func handleRemoveBreakpoint(p ProcessPeer, req *wire.Request) (*wire.Response, error) {
	addr, _ := req.Fields["addr"].(uint64)
	if err := p.Breakpoints().Remove(addr); err != nil {
		return nil, err
	}
	return wire.NewValidResponse(wire.ReqRemoveBreakpoint, nil), nil
}

func handleDeleteBreakpoint(p ProcessPeer, req *wire.Request) (*wire.Response, error) {
	addr, _ := req.Fields["addr"].(uint64)
	if err := p.Breakpoints().Delete(addr); err != nil {
		return nil, err
	}
	return wire.NewValidResponse(wire.ReqDeleteBreakpoint, nil), nil
}
