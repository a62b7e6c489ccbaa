package transport

import (
	"errors"
	"os"
	"os/signal"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// PipeLatch tracks whether a write to the response or events channel has
// failed because the debugger disconnected. A write failure on those
// channels is treated as debugger disconnection, not a runtime fault: the
// runtime disables itself on the next continue instead of dying to SIGPIPE.
//
// Writing to a FIFO whose reader has gone away raises SIGPIPE in addition
// to returning EPIPE from the write call; with no handler installed the
// default disposition kills the process. NewPipeLatch installs an
// os/signal.Notify drain so the signal is absorbed, and relies on the
// write-side EPIPE/ECONNRESET check (see MarkBrokenFromErr) to do the
// actual bookkeeping — this is the pure-Go analogue of latching and
// draining the pending signal rather than acting on its payload, since
// SIGPIPE carries none.
type PipeLatch struct {
	broken atomic.Bool
	sigCh  chan os.Signal
	done   chan struct{}
}

// NewPipeLatch installs the SIGPIPE drain and returns the latch. Call Stop
// when the process is tearing down.
func NewPipeLatch() *PipeLatch {
	l := &PipeLatch{
		sigCh: make(chan os.Signal, 1),
		done:  make(chan struct{}),
	}
	signal.Notify(l.sigCh, unix.SIGPIPE)
	go l.drain()
	return l
}

func (l *PipeLatch) drain() {
	for {
		select {
		case <-l.sigCh:
			// Nothing to do: the signal carries no payload the runtime
			// needs. The write call that triggered it will observe EPIPE
			// and call MarkBroken itself.
		case <-l.done:
			return
		}
	}
}

// MarkBroken records that a write observed EPIPE/ECONNRESET.
func (l *PipeLatch) MarkBroken() {
	l.broken.Store(true)
}

// MarkBrokenFromErr calls MarkBroken if err indicates the peer end of a
// pipe is gone.
func (l *PipeLatch) MarkBrokenFromErr(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET) {
		l.MarkBroken()
	}
}

// Broken reports whether the channel has been observed as disconnected.
func (l *PipeLatch) Broken() bool {
	return l.broken.Load()
}

// Stop tears down the SIGPIPE drain goroutine and stops signal delivery to
// its channel.
func (l *PipeLatch) Stop() {
	signal.Stop(l.sigCh)
	close(l.done)
}
