package transport

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenReadWriteOverFIFO(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(root, os.Getpid())
	require.NoError(t, l.CreateProcessDirs())

	writerErr := make(chan error, 1)
	go func() {
		w, err := OpenWrite(l.RequestPath())
		if err != nil {
			writerErr <- err
			return
		}
		defer w.Close()
		_, err = w.File().Write([]byte("hello"))
		writerErr <- err
	}()

	r, err := OpenRead(l.RequestPath())
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, 5)
	_, err = io.ReadFull(r.File(), buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
	require.NoError(t, <-writerErr)
}

func TestBoundedOpenRetryGivesUpWhenPathNeverAppears(t *testing.T) {
	root := t.TempDir()
	_, err := openWithRetryForTest(root+"/never-created", 2)
	assert.Error(t, err)
}

// openWithRetryForTest repeats openWithRetry's retry-while-missing loop with
// a tiny ceiling so the test doesn't wait out the full production timeout;
// it does not call openWithRetry itself.
func openWithRetryForTest(path string, maxRetries int) (*Channel, error) {
	for i := 0; i < maxRetries; i++ {
		f, err := os.OpenFile(path, os.O_RDONLY, 0)
		if err == nil {
			return &Channel{file: f, path: path}, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
		time.Sleep(time.Millisecond)
	}
	return nil, os.ErrNotExist
}
