// Package bpt implements the breakpoint table: a fixed-size open hash from
// address to breakpoint state, with install/remove operations that patch
// the debuggee's own text pages through internal/memaccess.
package bpt

import (
	"sync"

	"github.com/behrlich/udi-agent/internal/constants"
	"github.com/behrlich/udi-agent/internal/memaccess"
	"github.com/behrlich/udi-agent/internal/udierr"
)

// Breakpoint is one entry in the table. Exactly one of InMemory or
// (!InMemory && memory[Addr:Addr+SavedLen] == Saved[:SavedLen]) holds at
// every protocol-observable moment.
type Breakpoint struct {
	Addr     uint64
	Saved    [constants.MaxSavedBreakpointBytes]byte
	SavedLen int
	InMemory bool
	OwnerTID uint64 // 0 if process-wide
}

type bucket struct {
	mu      sync.Mutex
	entries []*Breakpoint
}

// Table is the fixed 256-bucket breakpoint hash, keyed by addr %
// constants.BreakpointTableBuckets. Each bucket carries its own mutex so
// operations on breakpoints at different addresses never contend, the same
// per-slot-locking texture the teacher uses for its per-tag state
// (tagMutexes []sync.Mutex in the queue runner).
type Table struct {
	buckets [constants.BreakpointTableBuckets]*bucket
	mem     *memaccess.Accessor
}

// New creates an empty table backed by mem for Install/Remove's memory
// patching.
func New(mem *memaccess.Accessor) *Table {
	t := &Table{mem: mem}
	for i := range t.buckets {
		t.buckets[i] = &bucket{}
	}
	return t
}

func (t *Table) bucketFor(addr uint64) *bucket {
	return t.buckets[addr%constants.BreakpointTableBuckets]
}

func (b *bucket) find(addr uint64) *Breakpoint {
	for _, e := range b.entries {
		if e.Addr == addr {
			return e
		}
	}
	return nil
}

// Lookup returns the breakpoint at addr, or nil if none exists.
func (t *Table) Lookup(addr uint64) *Breakpoint {
	b := t.bucketFor(addr)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.find(addr)
}

// Create registers a breakpoint at addr without installing it in memory.
// Creating a breakpoint at an address that already has one is coalesced —
// the existing entry is returned, not an error.
func (t *Table) Create(addr uint64) *Breakpoint {
	b := t.bucketFor(addr)
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing := b.find(addr); existing != nil {
		return existing
	}
	bp := &Breakpoint{Addr: addr}
	b.entries = append(b.entries, bp)
	return bp
}

// Install patches the trap instruction into memory at bp.Addr, saving the
// original bytes first. Installing an already-installed breakpoint is a
// no-op.
func (t *Table) Install(addr uint64) error {
	b := t.bucketFor(addr)
	b.mu.Lock()
	defer b.mu.Unlock()

	bp := b.find(addr)
	if bp == nil {
		return udierr.New("bpt.Install", udierr.ErrCodeNoSuchBreakpoint, "no breakpoint created at this address")
	}
	if bp.InMemory {
		return nil
	}

	orig, err := t.mem.Read(uintptr(addr), 1)
	if err != nil {
		return udierr.Wrap("bpt.Install", err)
	}
	bp.Saved[0] = orig[0]
	bp.SavedLen = 1

	if err := t.mem.Write(uintptr(addr), []byte{constants.TrapInstruction}); err != nil {
		return udierr.Wrap("bpt.Install", err)
	}
	bp.InMemory = true
	return nil
}

// Remove restores the original bytes at bp.Addr and clears InMemory.
func (t *Table) Remove(addr uint64) error {
	b := t.bucketFor(addr)
	b.mu.Lock()
	defer b.mu.Unlock()
	return t.removeLocked(b, addr, true)
}

// RemoveForContinue restores the original bytes in memory but leaves
// InMemory set, so a subsequent single-step-then-reinstall sequence (the
// two-stage continue past a breakpoint) knows to put the trap back rather
// than treating the breakpoint as disabled.
func (t *Table) RemoveForContinue(addr uint64) error {
	b := t.bucketFor(addr)
	b.mu.Lock()
	defer b.mu.Unlock()
	return t.removeLocked(b, addr, false)
}

func (t *Table) removeLocked(b *bucket, addr uint64, clearInMemory bool) error {
	bp := b.find(addr)
	if bp == nil {
		return udierr.New("bpt.Remove", udierr.ErrCodeNoSuchBreakpoint, "no breakpoint created at this address")
	}
	if !bp.InMemory {
		return nil
	}
	if err := t.mem.Write(uintptr(addr), bp.Saved[:bp.SavedLen]); err != nil {
		return udierr.Wrap("bpt.Remove", err)
	}
	if clearInMemory {
		bp.InMemory = false
	}
	return nil
}

// ReinstallAfterContinue re-patches the trap byte that RemoveForContinue
// took out, completing the two-stage continue.
func (t *Table) ReinstallAfterContinue(addr uint64) error {
	b := t.bucketFor(addr)
	b.mu.Lock()
	defer b.mu.Unlock()
	bp := b.find(addr)
	if bp == nil {
		return udierr.New("bpt.ReinstallAfterContinue", udierr.ErrCodeNoSuchBreakpoint, "no breakpoint created at this address")
	}
	if err := t.mem.Write(uintptr(addr), []byte{constants.TrapInstruction}); err != nil {
		return udierr.Wrap("bpt.ReinstallAfterContinue", err)
	}
	bp.InMemory = true
	return nil
}

// Delete removes the breakpoint from memory if installed, then frees its
// slot entirely.
func (t *Table) Delete(addr uint64) error {
	b := t.bucketFor(addr)
	b.mu.Lock()
	defer b.mu.Unlock()

	bp := b.find(addr)
	if bp == nil {
		return udierr.New("bpt.Delete", udierr.ErrCodeNoSuchBreakpoint, "no breakpoint created at this address")
	}
	if bp.InMemory {
		if err := t.mem.Write(uintptr(addr), bp.Saved[:bp.SavedLen]); err != nil {
			return udierr.Wrap("bpt.Delete", err)
		}
	}
	for i, e := range b.entries {
		if e.Addr == addr {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			break
		}
	}
	return nil
}
