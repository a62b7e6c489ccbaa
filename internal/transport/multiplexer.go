package transport

import (
	"golang.org/x/sys/unix"

	"github.com/behrlich/udi-agent/internal/udierr"
)

// Multiplexer waits on a set of request channels — the process request
// channel plus every live thread's request channel — and reports which one
// became readable. Exactly one request is serviced per wake, matching the
// "one control thread at a time" contract the coordinator enforces upstream
// of this wait.
type Multiplexer struct {
	keys []string
	fds  []int
}

// NewMultiplexer returns an empty multiplexer; channels are registered with
// Add before the first WaitReadable call.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{}
}

// Add registers a channel under key (a fixed name for the process channel,
// or the hex thread id of a thread channel) so WaitReadable can report which one woke the poll.
func (m *Multiplexer) Add(key string, ch *Channel) {
	m.keys = append(m.keys, key)
	m.fds = append(m.fds, ch.Fd())
}

// Remove drops a previously Add-ed channel, e.g. when a thread dies.
func (m *Multiplexer) Remove(key string) {
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			m.fds = append(m.fds[:i], m.fds[i+1:]...)
			return
		}
	}
}

// WaitReadable blocks until at least one registered channel has data ready
// and returns the key of the first ready one, in registration order. EINTR is retried transparently, since it carries no
// information the caller needs to act on.
func (m *Multiplexer) WaitReadable() (string, error) {
	pollFds := make([]unix.PollFd, len(m.fds))
	for i, fd := range m.fds {
		pollFds[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	}

	for {
		n, err := unix.Poll(pollFds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return "", udierr.Wrap("transport.WaitReadable", err)
		}
		if n == 0 {
			continue
		}
		for i, pfd := range pollFds {
			if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
				return m.keys[i], nil
			}
		}
	}
}
