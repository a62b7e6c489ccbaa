package coordinator

import (
	"golang.org/x/sys/unix"

	"github.com/behrlich/udi-agent/internal/udierr"
)

// ControlPipe is a single thread's private parking pipe: the thread blocks
// reading its own read end while parked, and the control thread writes the
// sentinel byte to its write end to release it.
type ControlPipe struct {
	readFD  int
	writeFD int
}

// NewControlPipe creates one thread's control pipe.
func NewControlPipe() (*ControlPipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return nil, udierr.Wrap("coordinator.NewControlPipe", err)
	}
	return &ControlPipe{readFD: fds[0], writeFD: fds[1]}, nil
}

// Close releases the pipe's file descriptors.
func (p *ControlPipe) Close() error {
	err1 := unix.Close(p.readFD)
	err2 := unix.Close(p.writeFD)
	if err1 != nil {
		return udierr.Wrap("coordinator.ControlPipe.Close", err1)
	}
	if err2 != nil {
		return udierr.Wrap("coordinator.ControlPipe.Close", err2)
	}
	return nil
}

// Park blocks the calling thread until another thread releases it by
// writing the sentinel byte.
func (p *ControlPipe) Park() error {
	return readSentinel(p.readFD)
}

// Release writes the sentinel byte to wake whatever thread is blocked in
// Park. Called only by the thread currently holding control.
func (p *ControlPipe) Release() error {
	return writeSentinel(p.writeFD)
}
