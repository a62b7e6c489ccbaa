package engine

import (
	"testing"
	"unsafe"

	"github.com/behrlich/udi-agent/internal/bpt"
	"github.com/behrlich/udi-agent/internal/memaccess"
	"github.com/behrlich/udi-agent/internal/wire"
)

// scratchCode is a package-level buffer of real NOPs, standing in for a
// debuggee instruction stream: tests that exercise single_step/
// next_instruction need a PC the real memaccess.Accessor can actually read
// and disassemble, not a fake in-memory map.
var scratchCode = [8]byte{0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90}

func scratchCodeAddr() uint64 {
	return uint64(uintptr(unsafe.Pointer(&scratchCode[0])))
}

type fakeThread struct {
	tid          uint64
	state        wire.ThreadState
	regs         wire.RegisterContext
	pendingSig   uint32
	dead         bool
	deathDone    bool
	stepAuxAddr  uint64
	stepAuxSet   bool
}

func (t *fakeThread) TID() uint64                   { return t.tid }
func (t *fakeThread) RunState() wire.ThreadState    { return t.state }
func (t *fakeThread) SetRunState(s wire.ThreadState) { t.state = s }
func (t *fakeThread) Registers() *wire.RegisterContext { return &t.regs }
func (t *fakeThread) SingleStepAuxAddr() (uint64, bool) { return t.stepAuxAddr, t.stepAuxSet }
func (t *fakeThread) SetSingleStepAuxAddr(addr uint64, ok bool) {
	t.stepAuxAddr, t.stepAuxSet = addr, ok
}
func (t *fakeThread) PendingSignal() uint32      { return t.pendingSig }
func (t *fakeThread) SetPendingSignal(s uint32)  { t.pendingSig = s }
func (t *fakeThread) MarkedDead() bool           { return t.dead }
func (t *fakeThread) CompleteDeathHandshake() error {
	t.deathDone = true
	return nil
}

type fakeProcess struct {
	pid          int
	arch         wire.Arch
	bpt          *bpt.Table
	mem          *memaccess.Accessor
	threads      []ThreadPeer
	mtCapable    bool
	contAuxAddr  uint64
	contAuxSet   bool
}

func (p *fakeProcess) PID() int                 { return p.pid }
func (p *fakeProcess) Arch() wire.Arch          { return p.arch }
func (p *fakeProcess) Breakpoints() *bpt.Table  { return p.bpt }
func (p *fakeProcess) Memory() *memaccess.Accessor { return p.mem }
func (p *fakeProcess) Threads() []ThreadPeer    { return p.threads }
func (p *fakeProcess) Thread(tid uint64) (ThreadPeer, bool) {
	for _, t := range p.threads {
		if t.TID() == tid {
			return t, true
		}
	}
	return nil, false
}
func (p *fakeProcess) MultithreadCapable() bool { return p.mtCapable }
func (p *fakeProcess) ContinueAuxAddr() (uint64, bool) { return p.contAuxAddr, p.contAuxSet }
func (p *fakeProcess) SetContinueAuxAddr(addr uint64, ok bool) {
	p.contAuxAddr, p.contAuxSet = addr, ok
}

func newFakeProcess() (*fakeProcess, *fakeThread) {
	mem := memaccess.NewAccessor()
	th := &fakeThread{tid: 1, state: wire.ThreadRunning}
	return &fakeProcess{
		pid:     1,
		arch:    wire.ArchX86_64,
		bpt:     bpt.New(mem),
		mem:     mem,
		threads: []ThreadPeer{th},
	}, th
}

func TestHandleContinueRejectsWhenAllSuspended(t *testing.T) {
	e := New()
	p, th := newFakeProcess()
	th.SetRunState(wire.ThreadSuspended)

	_, err := e.DispatchProcess(p, &wire.Request{Type: wire.ReqContinue, Fields: map[string]any{"sig": uint32(0)}})
	if err == nil {
		t.Fatal("expected continue to be rejected when every thread is suspended")
	}
}

func TestHandleContinueSetsPendingSignal(t *testing.T) {
	e := New()
	p, th := newFakeProcess()

	resp, err := e.DispatchProcess(p, &wire.Request{Type: wire.ReqContinue, Fields: map[string]any{"sig": uint32(9)}})
	if err != nil {
		t.Fatalf("DispatchProcess: %v", err)
	}
	if resp.Status != wire.RespValid {
		t.Fatalf("expected a valid response, got %+v", resp)
	}
	if th.PendingSignal() != 9 {
		t.Fatalf("expected pending signal 9, got %d", th.PendingSignal())
	}
}

func TestHandleCreateBreakpointRegistersEntry(t *testing.T) {
	e := New()
	p, _ := newFakeProcess()

	if _, err := e.DispatchProcess(p, &wire.Request{Type: wire.ReqCreateBreakpoint, Fields: map[string]any{"addr": uint64(0x1000)}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if bp := p.bpt.Lookup(0x1000); bp == nil {
		t.Fatal("expected breakpoint to be registered")
	}
}

func TestHandleStateReportsAllThreads(t *testing.T) {
	e := New()
	p, th := newFakeProcess()
	th.SetRunState(wire.ThreadSuspended)

	resp, err := e.DispatchProcess(p, &wire.Request{Type: wire.ReqState, Fields: map[string]any{}})
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	states, ok := resp.Fields["states"].([]wire.ThreadStateEntry)
	if !ok || len(states) != 1 {
		t.Fatalf("expected one thread state entry, got %+v", resp.Fields["states"])
	}
	if states[0].State != wire.ThreadSuspended {
		t.Fatalf("expected suspended state, got %v", states[0].State)
	}
}

func TestHandleReadWriteRegister(t *testing.T) {
	e := New()
	p, th := newFakeProcess()
	th.regs = wire.RegisterContext{Arch: wire.ArchX86_64, Valid: true}

	if _, err := e.DispatchThread(p, th, &wire.Request{Type: wire.ReqWriteRegister, Fields: map[string]any{
		"reg": uint16(wire.RegX86_64RAX), "value": uint64(0x42),
	}}); err != nil {
		t.Fatalf("write_register: %v", err)
	}

	resp, err := e.DispatchThread(p, th, &wire.Request{Type: wire.ReqReadRegister, Fields: map[string]any{
		"reg": uint16(wire.RegX86_64RAX),
	}})
	if err != nil {
		t.Fatalf("read_register: %v", err)
	}
	if resp.Fields["value"].(uint64) != 0x42 {
		t.Fatalf("expected 0x42, got %v", resp.Fields["value"])
	}
}

func TestHandleReadRegisterRejectsFloatingPoint(t *testing.T) {
	e := New()
	p, th := newFakeProcess()
	th.regs = wire.RegisterContext{Arch: wire.ArchX86_64, Valid: true}

	_, err := e.DispatchThread(p, th, &wire.Request{Type: wire.ReqReadRegister, Fields: map[string]any{
		"reg": uint16(wire.RegX86_64ST0),
	}})
	if err == nil {
		t.Fatal("expected floating-point register read to be rejected")
	}
}

func TestDispatchThreadStateMatchesProcessState(t *testing.T) {
	e := New()
	p, th := newFakeProcess()
	th.SetRunState(wire.ThreadSuspended)

	resp, err := e.DispatchThread(p, th, &wire.Request{Type: wire.ReqState, Fields: map[string]any{}})
	if err != nil {
		t.Fatalf("state via thread channel: %v", err)
	}
	states, ok := resp.Fields["states"].([]wire.ThreadStateEntry)
	if !ok || len(states) != 1 || states[0].State != wire.ThreadSuspended {
		t.Fatalf("expected the same process-wide state list via the thread channel, got %+v", resp.Fields["states"])
	}
}

func TestHandleSingleStepReturnsPreviousSetting(t *testing.T) {
	e := New()
	p, th := newFakeProcess()
	th.regs = wire.RegisterContext{Arch: wire.ArchX86_64, Valid: true, PC: scratchCodeAddr()}

	resp, err := e.DispatchThread(p, th, &wire.Request{Type: wire.ReqSingleStep, Fields: map[string]any{"value": true}})
	if err != nil {
		t.Fatalf("enable single_step: %v", err)
	}
	if resp.Fields["value"] != false {
		t.Fatalf("expected the first enable to report the previous setting (false), got %v", resp.Fields["value"])
	}
	if _, ok := th.SingleStepAuxAddr(); !ok {
		t.Fatal("expected a single-step aux address to be installed")
	}

	resp, err = e.DispatchThread(p, th, &wire.Request{Type: wire.ReqSingleStep, Fields: map[string]any{"value": true}})
	if err != nil {
		t.Fatalf("re-enable single_step: %v", err)
	}
	if resp.Fields["value"] != true {
		t.Fatalf("expected re-enabling to report the previous setting (true), got %v", resp.Fields["value"])
	}

	resp, err = e.DispatchThread(p, th, &wire.Request{Type: wire.ReqSingleStep, Fields: map[string]any{"value": false}})
	if err != nil {
		t.Fatalf("disable single_step: %v", err)
	}
	if resp.Fields["value"] != true {
		t.Fatalf("expected disabling to report the previous setting (true), got %v", resp.Fields["value"])
	}
	if _, ok := th.SingleStepAuxAddr(); ok {
		t.Fatal("expected the single-step aux address to be cleared after disable")
	}

	resp, err = e.DispatchThread(p, th, &wire.Request{Type: wire.ReqSingleStep, Fields: map[string]any{"value": false}})
	if err != nil {
		t.Fatalf("disable single_step when already disabled: %v", err)
	}
	if resp.Fields["value"] != false {
		t.Fatalf("expected disabling an already-disabled step to report false, got %v", resp.Fields["value"])
	}
}

func TestHandleThreadSuspendResume(t *testing.T) {
	e := New()
	p, th := newFakeProcess()

	if _, err := e.DispatchThread(p, th, &wire.Request{Type: wire.ReqThreadSuspend, Fields: map[string]any{}}); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if th.RunState() != wire.ThreadSuspended {
		t.Fatal("expected thread to be suspended")
	}
	if _, err := e.DispatchThread(p, th, &wire.Request{Type: wire.ReqThreadResume, Fields: map[string]any{}}); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if th.RunState() != wire.ThreadRunning {
		t.Fatal("expected thread to be running")
	}
}
