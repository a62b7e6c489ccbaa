package transport

import (
	"os"
	"time"

	"github.com/behrlich/udi-agent/internal/constants"
	"github.com/behrlich/udi-agent/internal/udierr"
)

// Channel is one FIFO endpoint, opened for either reading (request
// channels) or writing (response/events channels). Opening a FIFO blocks
// until a peer has opened the other end, and OpenRead/OpenWrite open in
// blocking mode, so they wait for a debugger without limit; their bounded
// retry covers only a path that does not exist yet.
type Channel struct {
	file *os.File
	path string
}

// Path returns the filesystem path backing the channel, for logging.
func (c *Channel) Path() string { return c.path }

// File exposes the underlying *os.File, for wire.NewDecoder/NewEncoder and
// for the Multiplexer's poll set.
func (c *Channel) File() *os.File { return c.file }

// Fd returns the channel's file descriptor.
func (c *Channel) Fd() int { return int(c.file.Fd()) }

// OpenRead opens path for reading, retrying while the peer has not yet
// opened it for writing (a FIFO open for read blocks, so this only retries
// on the rare case the path does not exist yet).
func OpenRead(path string) (*Channel, error) {
	return openWithRetry(path, os.O_RDONLY)
}

// OpenWrite opens path for writing, retrying under the same bound.
func OpenWrite(path string) (*Channel, error) {
	return openWithRetry(path, os.O_WRONLY)
}

func openWithRetry(path string, flag int) (*Channel, error) {
	var lastErr error
	for attempt := 0; attempt < constants.FIFOOpenMaxRetries; attempt++ {
		f, err := os.OpenFile(path, flag, 0)
		if err == nil {
			return &Channel{file: f, path: path}, nil
		}
		if !os.IsNotExist(err) {
			return nil, udierr.Wrap("transport.openWithRetry", err)
		}
		lastErr = err
		time.Sleep(constants.FIFOOpenRetryDelay)
	}
	return nil, udierr.NewFatal("transport.openWithRetry", udierr.ErrCodeTimeout,
		"timed out waiting for "+path+": "+lastErr.Error())
}

// Close closes the underlying file.
func (c *Channel) Close() error {
	if c.file == nil {
		return nil
	}
	return c.file.Close()
}
