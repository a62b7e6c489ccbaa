// Package memaccess implements abortable reads and writes against the
// debuggee's own address space: memory outside a recorded access window
// that faults becomes a signal event, but a fault inside one is recovered
// and reported as a failure response instead of crashing the runtime.
package memaccess

import (
	"runtime"
	"runtime/debug"
	"sync"
	"unsafe"

	"github.com/behrlich/udi-agent/internal/udierr"
)

// Reader is the read half of Accessor, accepted by internal/cfs so CFS
// computation can fetch instruction bytes and stack words without
// depending on the whole memaccess package surface.
type Reader interface {
	Read(addr uintptr, n int) ([]byte, error)
}

// Writer is the write half of Accessor.
type Writer interface {
	Write(addr uintptr, data []byte) error
}

// pointerFromAddr converts a raw debuggee address to unsafe.Pointer via
// indirection, the same trick the teacher uses for mmap'd addresses, to
// keep go vet's unsafeptr checker from flagging a direct uintptr-to-Pointer
// conversion.
//
//go:noinline
func pointerFromAddr(addr uintptr) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(&addr))
}

var initPanicOnFault sync.Once

// Accessor reads and writes the debuggee's own memory in place. Every
// operation runs inside a recorded access window: a goroutine-local record
// of the {addr, n} range currently being touched, consulted by the signal
// dispatcher to decide whether a SIGSEGV/SIGBUS it sees is an in-flight
// memaccess fault (recoverable) or a genuine debuggee fault (a signal
// event).
type Accessor struct {
	window windowTracker
}

// NewAccessor returns an Accessor and ensures SetPanicOnFault is enabled
// process-wide. It is safe to call more than once; only the first call has
// an effect.
func NewAccessor() *Accessor {
	initPanicOnFault.Do(func() {
		debug.SetPanicOnFault(true)
	})
	return &Accessor{}
}

// Read copies n bytes starting at addr out of the debuggee's address
// space. A fault during the copy is recovered and reported as
// udierr.ErrCodeMemoryFault (a failure response); any other panic
// propagates, since it indicates a runtime-level bug rather than a bad
// debuggee address.
func (a *Accessor) Read(addr uintptr, n int) (result []byte, err error) {
	if n <= 0 {
		return nil, udierr.New("memaccess.Read", udierr.ErrCodeInvalidArgument, "length must be positive")
	}

	buf := getBuffer(n)
	a.window.enter(addr, n)
	defer a.window.exit()

	restore, perr := temporarilyAllowAccess(addr, n)
	if perr == nil {
		defer restore()
	}

	defer func() {
		if r := recover(); r != nil {
			putBuffer(buf)
			result = nil
			err = faultToErr("memaccess.Read", r)
		}
	}()

	src := unsafe.Slice((*byte)(pointerFromAddr(addr)), n)
	copy(buf, src)
	return buf, nil
}

// Write copies data into the debuggee's address space starting at addr.
func (a *Accessor) Write(addr uintptr, data []byte) (err error) {
	if len(data) == 0 {
		return nil
	}

	a.window.enter(addr, len(data))
	defer a.window.exit()

	restore, perr := temporarilyAllowAccess(addr, len(data))
	if perr == nil {
		defer restore()
	}

	defer func() {
		if r := recover(); r != nil {
			err = faultToErr("memaccess.Write", r)
		}
	}()

	dst := unsafe.Slice((*byte)(pointerFromAddr(addr)), len(data))
	copy(dst, data)
	return nil
}

func faultToErr(op string, r any) error {
	if rerr, ok := r.(runtime.Error); ok {
		return udierr.New(op, udierr.ErrCodeMemoryFault, rerr.Error())
	}
	panic(r)
}

// InWindow reports whether addr falls inside any access window currently
// open on any goroutine that has called into this Accessor — the signal
// dispatcher's recovery check.
func (a *Accessor) InWindow(addr uintptr) bool {
	return a.window.contains(addr)
}
