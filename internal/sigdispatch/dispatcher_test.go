package sigdispatch

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestDispatcherInvokesHandler(t *testing.T) {
	received := make(chan unix.Signal, 1)
	d := New(func(sig unix.Signal) bool {
		received <- sig
		return true
	})
	d.Install()
	defer d.Stop()

	if err := unix.Kill(unix.Getpid(), unix.SIGUSR1); err != nil {
		t.Fatalf("Kill: %v", err)
	}

	select {
	case sig := <-received:
		if sig != unix.SIGUSR1 {
			t.Fatalf("expected SIGUSR1, got %v", sig)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatcher to invoke handler")
	}
}

func TestClassify(t *testing.T) {
	if !IsTrap(unix.SIGTRAP) {
		t.Fatal("expected SIGTRAP to classify as a trap")
	}
	if IsTrap(unix.SIGUSR2) {
		t.Fatal("did not expect SIGUSR2 to classify as a trap")
	}
	if !IsMemoryFault(unix.SIGSEGV) || !IsMemoryFault(unix.SIGBUS) {
		t.Fatal("expected SIGSEGV/SIGBUS to classify as memory faults")
	}
}
