// Package transport implements the filesystem-FIFO channels the runtime
// speaks to the debugger over: one process directory with request,
// response, and events FIFOs, plus one subdirectory per thread with its
// own request/response pair.
package transport

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/behrlich/udi-agent/internal/constants"
	"github.com/behrlich/udi-agent/internal/udierr"
)

// Layout resolves the directory and FIFO paths for a single debuggee
// process, rooted at root (normally constants.DefaultRootDir or
// UDI_ROOT_DIR).
type Layout struct {
	root string
	pid  int
}

// NewLayout returns a Layout for pid under root.
func NewLayout(root string, pid int) *Layout {
	return &Layout{root: root, pid: pid}
}

// ProcessDir is <root>/<pid>.
func (l *Layout) ProcessDir() string {
	return filepath.Join(l.root, strconv.Itoa(l.pid))
}

// RequestPath is <root>/<pid>/request.
func (l *Layout) RequestPath() string {
	return filepath.Join(l.ProcessDir(), constants.RequestFileName)
}

// ResponsePath is <root>/<pid>/response.
func (l *Layout) ResponsePath() string {
	return filepath.Join(l.ProcessDir(), constants.ResponseFileName)
}

// EventsPath is <root>/<pid>/events.
func (l *Layout) EventsPath() string {
	return filepath.Join(l.ProcessDir(), constants.EventsFileName)
}

// ThreadDir is <root>/<pid>/<hex-tid>.
func (l *Layout) ThreadDir(tid uint64) string {
	return filepath.Join(l.ProcessDir(), fmt.Sprintf("%x", tid))
}

// ThreadRequestPath is <root>/<pid>/<hex-tid>/request.
func (l *Layout) ThreadRequestPath(tid uint64) string {
	return filepath.Join(l.ThreadDir(tid), constants.RequestFileName)
}

// ThreadResponsePath is <root>/<pid>/<hex-tid>/response.
func (l *Layout) ThreadResponsePath(tid uint64) string {
	return filepath.Join(l.ThreadDir(tid), constants.ResponseFileName)
}

// CreateProcessDirs creates the process directory and its three FIFOs. It
// is safe to call once per process lifetime; EEXIST on the directory or a
// FIFO is tolerated so a restarted init can reuse a stale directory left
// by a prior run of the same pid.
func (l *Layout) CreateProcessDirs() error {
	if err := mkdirAll(l.ProcessDir()); err != nil {
		return err
	}
	for _, p := range []string{l.RequestPath(), l.ResponsePath(), l.EventsPath()} {
		if err := mkfifo(p); err != nil {
			return err
		}
	}
	return nil
}

// CreateThreadDirs creates a thread's subdirectory and its two FIFOs.
func (l *Layout) CreateThreadDirs(tid uint64) error {
	if err := mkdirAll(l.ThreadDir(tid)); err != nil {
		return err
	}
	for _, p := range []string{l.ThreadRequestPath(tid), l.ThreadResponsePath(tid)} {
		if err := mkfifo(p); err != nil {
			return err
		}
	}
	return nil
}

// RemoveThreadDirs tears down a dead thread's directory.
func (l *Layout) RemoveThreadDirs(tid uint64) error {
	if err := os.RemoveAll(l.ThreadDir(tid)); err != nil {
		return udierr.Wrap("transport.RemoveThreadDirs", err)
	}
	return nil
}

// RemoveProcessDirs tears down the whole process directory at shutdown.
func (l *Layout) RemoveProcessDirs() error {
	if err := os.RemoveAll(l.ProcessDir()); err != nil {
		return udierr.Wrap("transport.RemoveProcessDirs", err)
	}
	return nil
}

func mkdirAll(path string) error {
	if err := os.MkdirAll(path, constants.DirMode); err != nil {
		return udierr.Wrap("transport.mkdirAll", err)
	}
	return nil
}

func mkfifo(path string) error {
	err := unix.Mkfifo(path, constants.FifoMode)
	if err != nil && err != unix.EEXIST {
		return udierr.Wrap("transport.mkfifo", err)
	}
	return nil
}
