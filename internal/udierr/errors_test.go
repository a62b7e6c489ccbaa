package udierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestNewIsFailure(t *testing.T) {
	err := New("bpt.Install", ErrCodeNoSuchBreakpoint, "address not registered")
	assert.Equal(t, Failure, err.Outcome)
	assert.Equal(t, ErrCodeNoSuchBreakpoint, err.Code)
	assert.Contains(t, err.Error(), "bpt.Install")
	assert.Contains(t, err.Error(), "address not registered")
}

func TestNewFatalOutcome(t *testing.T) {
	err := NewFatal("transport.Write", ErrCodePeerClosed, "broken pipe")
	assert.Equal(t, Fatal, err.Outcome)
	assert.True(t, IsFatal(err))
	assert.False(t, IsFatal(New("x", ErrCodeInvalidArgument, "y")))
}

func TestNewErrnoMapsCode(t *testing.T) {
	err := NewErrno("memaccess.Read", unix.EFAULT)
	assert.Equal(t, ErrCodeMemoryFault, err.Code)
	assert.Equal(t, unix.EFAULT, err.Errno)
	assert.True(t, IsFatal(err))
}

func TestWrapPreservesCodeAndOutcome(t *testing.T) {
	inner := New("bpt.Lookup", ErrCodeNoSuchBreakpoint, "no entry")
	wrapped := Wrap("engine.handleDeleteBreakpoint", inner)
	require.NotNil(t, wrapped)
	assert.Equal(t, ErrCodeNoSuchBreakpoint, wrapped.Code)
	assert.Equal(t, Failure, wrapped.Outcome)
	assert.Equal(t, "engine.handleDeleteBreakpoint", wrapped.Op)
}

func TestWrapUntypedErrorBecomesFatalIOError(t *testing.T) {
	wrapped := Wrap("transport.Read", errors.New("short read"))
	require.NotNil(t, wrapped)
	assert.Equal(t, ErrCodeIO, wrapped.Code)
	assert.Equal(t, Fatal, wrapped.Outcome)
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap("op", nil))
}

func TestIsCode(t *testing.T) {
	err := New("cfs.Decode", ErrCodeInvalidArgument, "bad opcode")
	assert.True(t, IsCode(err, ErrCodeInvalidArgument))
	assert.False(t, IsCode(err, ErrCodeProtocol))
	assert.False(t, IsCode(errors.New("plain"), ErrCodeInvalidArgument))
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := New("op-a", ErrCodeNoSuchBreakpoint, "msg a")
	b := New("op-b", ErrCodeNoSuchBreakpoint, "msg b")
	c := New("op-c", ErrCodeProtocol, "msg c")
	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}
