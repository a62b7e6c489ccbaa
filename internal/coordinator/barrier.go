// Package coordinator implements the "one control thread at a time"
// protocol: the thread barrier and per-thread control pipes that let the
// signal dispatcher freeze every peer thread while one thread converses
// with the debugger, then hand control to whichever thread needs it next.
package coordinator

import (
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/behrlich/udi-agent/internal/constants"
	"github.com/behrlich/udi-agent/internal/udierr"
)

// Barrier is the process-wide synchronization primitive: a CAS-guarded
// sync variable plus a 1-byte pipe peer threads write to on arrival and the
// control thread reads from to count them, matching spec §3's "{ sync_var:
// atomic u32, read_fd, write_fd }".
type Barrier struct {
	syncVar atomic.Uint32
	readFD  int
	writeFD int
}

// NewBarrier creates the barrier pipe. Call Close at process teardown.
func NewBarrier() (*Barrier, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return nil, udierr.Wrap("coordinator.NewBarrier", err)
	}
	return &Barrier{readFD: fds[0], writeFD: fds[1]}, nil
}

// Close releases the barrier pipe's file descriptors.
func (b *Barrier) Close() error {
	err1 := unix.Close(b.readFD)
	err2 := unix.Close(b.writeFD)
	if err1 != nil {
		return udierr.Wrap("coordinator.Barrier.Close", err1)
	}
	if err2 != nil {
		return udierr.Wrap("coordinator.Barrier.Close", err2)
	}
	return nil
}

// tryAcquire attempts the 0->1 compare-and-swap that elects the calling
// thread as control thread. Returns true on success.
func (b *Barrier) tryAcquire() bool {
	return b.syncVar.CompareAndSwap(0, 1)
}

// release resets the sync variable 1->0, reopening the race for the next
// signal to arrive.
func (b *Barrier) release() {
	b.syncVar.Store(0)
}

// announceArrival writes the sentinel byte, signaling that the calling
// (non-control) thread has parked at the barrier.
func (b *Barrier) announceArrival() error {
	return writeSentinel(b.writeFD)
}

// awaitArrivals blocks until n sentinel bytes have been read from the
// barrier pipe — one per peer thread that was sent the suspend signal.
func (b *Barrier) awaitArrivals(n int) error {
	for i := 0; i < n; i++ {
		if err := readSentinel(b.readFD); err != nil {
			return err
		}
	}
	return nil
}

func writeSentinel(fd int) error {
	buf := [1]byte{constants.Sentinel}
	for {
		n, err := unix.Write(fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return udierr.Wrap("coordinator.writeSentinel", err)
		}
		if n != 1 {
			return udierr.NewFatal("coordinator.writeSentinel", udierr.ErrCodeIO, "short write on control pipe")
		}
		return nil
	}
}

func readSentinel(fd int) error {
	buf := [1]byte{}
	for {
		n, err := unix.Read(fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return udierr.Wrap("coordinator.readSentinel", err)
		}
		if n == 0 {
			return udierr.NewFatal("coordinator.readSentinel", udierr.ErrCodePeerClosed, "control pipe closed")
		}
		if buf[0] != constants.Sentinel {
			udierr.Abort()
		}
		return nil
	}
}
