package lifecycle

import (
	"os"
	"testing"

	"github.com/behrlich/udi-agent/internal/constants"
	"github.com/behrlich/udi-agent/internal/wire"
)

func TestResolveRootDirPrefersConfig(t *testing.T) {
	got := resolveRootDir(&Config{RootDir: "/explicit/root"})
	if got != "/explicit/root" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveRootDirFallsBackToEnv(t *testing.T) {
	t.Setenv(constants.EnvRootDir, "/from/env")
	got := resolveRootDir(&Config{})
	if got != "/from/env" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveRootDirFallsBackToDefault(t *testing.T) {
	os.Unsetenv(constants.EnvRootDir)
	got := resolveRootDir(&Config{})
	if got != constants.DefaultRootDir {
		t.Fatalf("got %q, want %q", got, constants.DefaultRootDir)
	}
}

func newTestThread(tid uint64) *Thread {
	return &Thread{tid: tid, state: wire.ThreadRunning}
}

func TestThreadRunStateRoundTrips(t *testing.T) {
	th := newTestThread(1)
	if th.RunState() != wire.ThreadRunning {
		t.Fatalf("expected initial state running, got %v", th.RunState())
	}
	th.SetRunState(wire.ThreadSuspended)
	if th.RunState() != wire.ThreadSuspended {
		t.Fatal("expected state to update to suspended")
	}
}

func TestThreadSingleStepAuxAddr(t *testing.T) {
	th := newTestThread(1)
	if _, ok := th.SingleStepAuxAddr(); ok {
		t.Fatal("expected no single-step aux set initially")
	}
	th.SetSingleStepAuxAddr(0x4000, true)
	addr, ok := th.SingleStepAuxAddr()
	if !ok || addr != 0x4000 {
		t.Fatalf("got addr=%#x ok=%v", addr, ok)
	}
	th.SetSingleStepAuxAddr(0, false)
	if _, ok := th.SingleStepAuxAddr(); ok {
		t.Fatal("expected aux cleared")
	}
}

func TestThreadMarkDeadAndPendingHandoff(t *testing.T) {
	th := newTestThread(1)
	if th.MarkedDead() {
		t.Fatal("expected not dead initially")
	}
	if th.PendingHandoff() {
		t.Fatal("expected no pending handoff initially")
	}
	th.markDead()
	if !th.MarkedDead() {
		t.Fatal("expected dead after markDead")
	}
	// A dead thread always reports a pending handoff even without an
	// explicit SetPendingHandoff, since its death report still needs to
	// be serviced by the coordinator.
	if !th.PendingHandoff() {
		t.Fatal("expected dead thread to report a pending handoff")
	}
}

func TestThreadControlThreadToken(t *testing.T) {
	th := newTestThread(1)
	if th.IsControlThread() {
		t.Fatal("expected no control-thread token initially")
	}
	th.SetControlThread(true)
	if !th.IsControlThread() {
		t.Fatal("expected control-thread token set")
	}
	th.SetControlThread(false)
	if th.IsControlThread() {
		t.Fatal("expected control-thread token cleared")
	}
}

func TestThreadPendingSignal(t *testing.T) {
	th := newTestThread(1)
	if th.PendingSignal() != 0 {
		t.Fatal("expected no pending signal initially")
	}
	th.SetPendingSignal(9)
	if th.PendingSignal() != 9 {
		t.Fatal("expected pending signal to round-trip")
	}
}
