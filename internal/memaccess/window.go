package memaccess

import (
	"sync"

	"github.com/petermattis/goid"
)

// accessWindow is the {addr, len} range one goroutine is currently copying
// through Read or Write.
type accessWindow struct {
	addr uintptr
	n    int
}

func (w accessWindow) contains(addr uintptr) bool {
	return addr >= w.addr && addr < w.addr+uintptr(w.n)
}

// windowTracker records each goroutine's currently open access window so
// the signal dispatcher can tell a recoverable memaccess fault apart from a
// genuine debuggee fault: a SIGSEGV/SIGBUS whose faulting address falls
// inside some goroutine's open window is this package's own recovery path
// at work, not a debuggee-level signal event.
//
// Go has no notion of thread-local storage, so this is keyed by goroutine
// ID (via petermattis/goid) rather than being a single global slot — the
// same substitution internal/logging makes for its reentrant lock.
type windowTracker struct {
	mu      sync.Mutex
	windows map[int64]accessWindow
}

func (t *windowTracker) enter(addr uintptr, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.windows == nil {
		t.windows = make(map[int64]accessWindow)
	}
	t.windows[goid.Get()] = accessWindow{addr: addr, n: n}
}

func (t *windowTracker) exit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.windows, goid.Get())
}

func (t *windowTracker) contains(addr uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, w := range t.windows {
		if w.contains(addr) {
			return true
		}
	}
	return false
}
