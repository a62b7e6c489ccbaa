package memaccess

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

var pageSize = os.Getpagesize()

// temporarilyAllowAccess remaps the pages covering [addr, addr+n) to
// PROT_READ|PROT_WRITE|PROT_EXEC for the duration of a copy and returns a
// function that restores the original protection.
//
// Go cannot inspect a recovered fault's siginfo.si_code (no raw sigaction
// handler in this cgo-free port), so there is no way to distinguish "this
// page has no permission at all" from "this page exists but is read-only"
// after the fact. Widening protection proactively, before the copy, is the
// Go-idiomatic trade documented for this port: it may let a read or write
// through that the debuggee's own page permissions would have refused, but
// it keeps the implementation portable and signal-handler-free. A genuinely
// unmapped address still faults inside the widened window and is reported
// as a failure the same way.
func temporarilyAllowAccess(addr uintptr, n int) (restore func(), err error) {
	base, length := pageRange(addr, n)
	region := unsafe.Slice((*byte)(pointerFromAddr(base)), length)

	originalProt, found := protectionOf(addr)

	if err := unix.Mprotect(region, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC); err != nil {
		return func() {}, err
	}
	if !found {
		// Nothing to restore to: the address was unmapped before the
		// widened access, and stays that way afterward as far as this
		// accessor is concerned.
		return func() {}, nil
	}
	return func() {
		_ = unix.Mprotect(region, toUnixProt(originalProt))
	}, nil
}

func toUnixProt(p int) int {
	var u int
	if p&protRead != 0 {
		u |= unix.PROT_READ
	}
	if p&protWrite != 0 {
		u |= unix.PROT_WRITE
	}
	if p&protExec != 0 {
		u |= unix.PROT_EXEC
	}
	return u
}

// pageRange returns the page-aligned base address and length covering
// [addr, addr+n).
func pageRange(addr uintptr, n int) (uintptr, int) {
	mask := uintptr(pageSize - 1)
	base := addr &^ mask
	end := addr + uintptr(n)
	endAligned := (end + mask) &^ mask
	return base, int(endAligned - base)
}
