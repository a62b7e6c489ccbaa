package memaccess

import (
	"bytes"
	"testing"
	"unsafe"
)

var memTestBuf [32]byte

func memTestAddr(off int) uintptr {
	return uintptr(unsafe.Pointer(&memTestBuf[off]))
}

func TestReadReturnsExactBytes(t *testing.T) {
	copy(memTestBuf[:4], []byte{0x01, 0x02, 0x03, 0x04})

	a := NewAccessor()
	got, err := a.Read(memTestAddr(0), 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Fatalf("got %v", got)
	}
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	a := NewAccessor()
	want := []byte{0xde, 0xad, 0xbe, 0xef}
	if err := a.Write(memTestAddr(8), want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := a.Read(memTestAddr(8), len(want))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestReadRejectsNonPositiveLength(t *testing.T) {
	a := NewAccessor()
	if _, err := a.Read(memTestAddr(0), 0); err == nil {
		t.Fatal("expected an error for a zero-length read")
	}
}

func TestWriteEmptyIsNoop(t *testing.T) {
	a := NewAccessor()
	if err := a.Write(memTestAddr(0), nil); err != nil {
		t.Fatalf("expected nil error for empty write, got %v", err)
	}
}

func TestInWindowClosedOutsideReadWrite(t *testing.T) {
	a := NewAccessor()
	addr := memTestAddr(16)

	// The window is only open for the duration of the copy itself; there is
	// no hook to observe it mid-flight from the same goroutine without
	// racing the real implementation, so this exercises the simpler
	// property: outside of any Read/Write, no window is open.
	if a.InWindow(addr) {
		t.Fatal("expected no open access window before any Read/Write")
	}
	if _, err := a.Read(addr, 4); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if a.InWindow(addr) {
		t.Fatal("expected the access window to be closed after Read returns")
	}
}
