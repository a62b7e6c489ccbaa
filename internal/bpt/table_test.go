package bpt

import (
	"unsafe"

	"testing"

	"github.com/behrlich/udi-agent/internal/constants"
	"github.com/behrlich/udi-agent/internal/memaccess"
)

// scratch is a package-level buffer the tests patch through the real
// memaccess.Accessor, standing in for a debuggee text page.
var scratch [16]byte

func scratchAddr() uint64 {
	return uint64(uintptr(unsafe.Pointer(&scratch[0])))
}

func newTestTable() *Table {
	return New(memaccess.NewAccessor())
}

func TestCreateCoalescesDoubleCreate(t *testing.T) {
	tbl := newTestTable()
	addr := scratchAddr()

	bp1 := tbl.Create(addr)
	bp2 := tbl.Create(addr)
	if bp1 != bp2 {
		t.Fatal("expected double-create to return the existing entry, not a new one")
	}
}

func TestLookupMissingReturnsNil(t *testing.T) {
	tbl := newTestTable()
	if bp := tbl.Lookup(0xdeadbeef); bp != nil {
		t.Fatalf("expected nil for an address with no breakpoint, got %+v", bp)
	}
}

func TestInstallRemoveRoundTripsMemory(t *testing.T) {
	scratch[0] = 0x90
	addr := scratchAddr()

	tbl := newTestTable()
	tbl.Create(addr)

	if err := tbl.Install(addr); err != nil {
		t.Fatalf("Install: %v", err)
	}
	bp := tbl.Lookup(addr)
	if !bp.InMemory {
		t.Fatal("expected InMemory after Install")
	}
	if scratch[0] != constants.TrapInstruction {
		t.Fatalf("expected trap byte patched in, got %#x", scratch[0])
	}

	if err := tbl.Remove(addr); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if bp.InMemory {
		t.Fatal("expected InMemory cleared after Remove")
	}
	if scratch[0] != 0x90 {
		t.Fatalf("expected original byte restored, got %#x", scratch[0])
	}
}

func TestInstallIsNoopWhenAlreadyInstalled(t *testing.T) {
	scratch[1] = 0x42
	addr := scratchAddr() + 1

	tbl := newTestTable()
	tbl.Create(addr)
	if err := tbl.Install(addr); err != nil {
		t.Fatalf("first Install: %v", err)
	}
	if err := tbl.Install(addr); err != nil {
		t.Fatalf("second Install: %v", err)
	}
	if scratch[1] != constants.TrapInstruction {
		t.Fatalf("expected trap byte still patched, got %#x", scratch[1])
	}
}

func TestRemoveForContinueLeavesInMemorySet(t *testing.T) {
	scratch[2] = 0x11
	addr := scratchAddr() + 2

	tbl := newTestTable()
	tbl.Create(addr)
	if err := tbl.Install(addr); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := tbl.RemoveForContinue(addr); err != nil {
		t.Fatalf("RemoveForContinue: %v", err)
	}
	bp := tbl.Lookup(addr)
	if !bp.InMemory {
		t.Fatal("expected InMemory to remain true after RemoveForContinue")
	}
	if scratch[2] != 0x11 {
		t.Fatalf("expected original byte restored in memory, got %#x", scratch[2])
	}

	if err := tbl.ReinstallAfterContinue(addr); err != nil {
		t.Fatalf("ReinstallAfterContinue: %v", err)
	}
	if scratch[2] != constants.TrapInstruction {
		t.Fatalf("expected trap byte re-patched, got %#x", scratch[2])
	}
}

func TestDeleteRestoresMemoryAndFreesSlot(t *testing.T) {
	scratch[3] = 0x55
	addr := scratchAddr() + 3

	tbl := newTestTable()
	tbl.Create(addr)
	if err := tbl.Install(addr); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := tbl.Delete(addr); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if scratch[3] != 0x55 {
		t.Fatalf("expected original byte restored on delete, got %#x", scratch[3])
	}
	if bp := tbl.Lookup(addr); bp != nil {
		t.Fatal("expected breakpoint slot freed after Delete")
	}
}

func TestOperationsOnUnknownAddressFail(t *testing.T) {
	tbl := newTestTable()
	if err := tbl.Install(0xbad); err == nil {
		t.Fatal("expected Install on unknown address to fail")
	}
	if err := tbl.Remove(0xbad); err == nil {
		t.Fatal("expected Remove on unknown address to fail")
	}
	if err := tbl.Delete(0xbad); err == nil {
		t.Fatal("expected Delete on unknown address to fail")
	}
}
