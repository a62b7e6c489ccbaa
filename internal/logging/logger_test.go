package logging

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	l.Debug("should not appear")
	l.Info("should not appear either")
	l.Warn("this one shows", "key", "value")
	l.Error("and this one")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "[WARN] this one shows key=value")
	assert.Contains(t, out, "[ERROR] and this one")
}

func TestLoggerPrintfVariants(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	l.Debugf("n=%d", 7)
	l.Infof("pid=%d", 42)

	out := buf.String()
	assert.Contains(t, out, "[DEBUG] n=7")
	assert.Contains(t, out, "[INFO] pid=42")
}

func TestDefaultLoggerSingleton(t *testing.T) {
	first := Default()
	second := Default()
	assert.Same(t, first, second)
}

func TestSetDefaultReplacesSingleton(t *testing.T) {
	var buf bytes.Buffer
	custom := NewLogger(&Config{Level: LevelDebug, Output: &buf})
	SetDefault(custom)
	defer SetDefault(NewLogger(nil))

	Info("routed through custom logger")
	assert.Contains(t, buf.String(), "routed through custom logger")
}

// reentrantLogWriter calls back into the logger mid-write, simulating a
// component (e.g. the event publisher) that reports a write failure while
// already holding the logger's lock.
type reentrantLogWriter struct {
	l        *Logger
	buf      *bytes.Buffer
	reentered bool
}

func (w *reentrantLogWriter) Write(p []byte) (int, error) {
	if !w.reentered {
		w.reentered = true
		w.l.Error("nested write failure")
	}
	return w.buf.Write(p)
}

func TestLoggerIsReentrantOnSameGoroutine(t *testing.T) {
	var buf bytes.Buffer
	w := &reentrantLogWriter{buf: &buf}
	l := NewLogger(&Config{Level: LevelDebug, Output: w})
	w.l = l

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Info("outer message")
	}()
	<-done

	out := buf.String()
	assert.True(t, strings.Contains(out, "nested write failure"))
	assert.True(t, strings.Contains(out, "outer message"))
}

func TestReentrantMutexBlocksOtherGoroutines(t *testing.T) {
	m := &reentrantMutex{}
	m.Lock()

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Lock()
		close(acquired)
		m.Unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second goroutine acquired lock while first goroutine held it")
	default:
	}

	m.Unlock()
	wg.Wait()
}

func TestReentrantMutexUnlockOfUnlockedPanics(t *testing.T) {
	m := &reentrantMutex{}
	require.Panics(t, func() {
		m.Unlock()
	})
}
