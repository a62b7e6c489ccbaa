package coordinator

import (
	"golang.org/x/sys/unix"

	"github.com/behrlich/udi-agent/internal/constants"
	"github.com/behrlich/udi-agent/internal/udierr"
	"github.com/behrlich/udi-agent/internal/wire"
)

// Peer is the coordinator's view of one live thread: enough surface to
// park it, target it with the suspend signal, and hand off control-thread
// status to it. internal/lifecycle's Thread type implements this. The
// debugger-visible running/suspended state is wire.ThreadState directly,
// rather than a parallel coordinator-local enum, since the request
// engine's suspend/resume handlers and this package's park/release
// decisions must always agree on the same value.
type Peer interface {
	TID() uint64
	RunState() wire.ThreadState
	IsControlThread() bool
	SetControlThread(bool)
	// PendingHandoff reports whether this peer needs to become the control
	// thread next: either an externally-sourced signal is queued for it, or
	// it is mid-reporting its own death.
	PendingHandoff() bool
	Pipe() *ControlPipe
}

// Registry supplies the coordinator with the current thread list, in
// insertion order, each time it needs to enumerate peers.
type Registry interface {
	LivePeers() []Peer
}

// Coordinator orchestrates BlockOtherThreads/ReleaseOtherThreads over a
// single process-wide Barrier and a Registry of live threads.
type Coordinator struct {
	pid     int
	barrier *Barrier
	reg     Registry
}

// New returns a Coordinator for a process with the given pid, backed by a
// freshly created barrier pipe.
func New(pid int, reg Registry) (*Coordinator, error) {
	b, err := NewBarrier()
	if err != nil {
		return nil, err
	}
	return &Coordinator{pid: pid, barrier: b, reg: reg}, nil
}

// Close releases the barrier pipe.
func (c *Coordinator) Close() error {
	return c.barrier.Close()
}

// BlockOtherThreads implements spec §4.7's block_other_threads: the first
// thread to arrive (self) becomes the control thread and waits for every
// other running peer to park; any thread that loses the race parks itself
// and returns won=false once released.
func (c *Coordinator) BlockOtherThreads(self Peer) (won bool, err error) {
	if c.barrier.tryAcquire() {
		self.SetControlThread(true)

		running := 0
		for _, p := range c.reg.LivePeers() {
			if p.TID() == self.TID() {
				continue
			}
			if p.RunState() == wire.ThreadSuspended {
				continue
			}
			if err := tgkill(c.pid, p.TID(), constants.ThreadSuspendSignal); err != nil {
				return true, err
			}
			running++
		}

		if running > 0 {
			if err := c.barrier.awaitArrivals(running); err != nil {
				return true, err
			}
		}
		return true, nil
	}

	if err := c.barrier.announceArrival(); err != nil {
		return false, err
	}
	if err := self.Pipe().Park(); err != nil {
		return false, err
	}
	return false, nil
}

// ReleaseOtherThreads implements spec §4.7's release_other_threads: if a
// peer needs to take over (a queued external signal or a pending thread-
// death report), control is handed to it directly; otherwise the barrier is
// reset and every running peer is released. If self is itself suspended, it
// parks on its own pipe after releasing everyone else.
func (c *Coordinator) ReleaseOtherThreads(self Peer) error {
	for _, p := range c.reg.LivePeers() {
		if p.TID() == self.TID() {
			continue
		}
		if p.PendingHandoff() {
			self.SetControlThread(false)
			p.SetControlThread(true)
			if err := p.Pipe().Release(); err != nil {
				return err
			}
			return self.Pipe().Park()
		}
	}

	c.barrier.release()
	for _, p := range c.reg.LivePeers() {
		if p.TID() == self.TID() {
			continue
		}
		if p.RunState() != wire.ThreadRunning {
			continue
		}
		if err := p.Pipe().Release(); err != nil {
			return err
		}
	}

	if self.RunState() == wire.ThreadSuspended {
		return self.Pipe().Park()
	}
	return nil
}

func tgkill(pid int, tid uint64, sig unix.Signal) error {
	if err := unix.Tgkill(pid, int(tid), sig); err != nil {
		return udierr.Wrap("coordinator.tgkill", err)
	}
	return nil
}
