// Package sigdispatch implements the signal dispatcher (C6): a single
// goroutine that receives every catchable signal via os/signal.Notify and
// hands each one in turn to a Handler that runs the spec's entry procedure
// (block other threads, classify the signal, publish an event, run the
// request loop, release other threads).
//
// Go gives no portable way to install a raw SA_SIGINFO handler without
// cgo, so unlike a pthread-based runtime this dispatcher never runs on the
// faulting thread's own stack; it always runs on its own goroutine, reading
// off the channel os/signal hands it. It learns only which signal arrived:
// not which thread raised it, and not the machine state the signal
// interrupted. A fault inside a memaccess copy is recovered inside
// memaccess as a Go panic and never reaches this dispatcher.
package sigdispatch

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/behrlich/udi-agent/internal/constants"
	"github.com/behrlich/udi-agent/internal/logging"
)

// Handler is invoked once per received signal, on the dispatcher's own
// goroutine. It implements the spec §4.6 entry procedure end to end:
// blocking other threads, classifying and publishing the event, running the request loop, and
// releasing other threads before returning. A true return tells the
// dispatcher the signal was ours to handle; a false return means it should
// be replayed to the application's own prior handler, if any.
type Handler func(sig unix.Signal) (handled bool)

// Dispatcher owns the single os/signal.Notify channel for the full
// catchable-signal list and the goroutine that drains it.
type Dispatcher struct {
	ch      chan os.Signal
	done    chan struct{}
	handler Handler

	mu            sync.Mutex
	priorHandlers map[unix.Signal]func(os.Signal)
}

// New creates a dispatcher that will call handler for every signal in
// constants.CatchableSignals, once Install is called.
func New(handler Handler) *Dispatcher {
	return &Dispatcher{
		ch:            make(chan os.Signal, 16),
		done:          make(chan struct{}),
		handler:       handler,
		priorHandlers: make(map[unix.Signal]func(os.Signal)),
	}
}

// Install registers the signal set with os/signal and starts the
// dispatcher goroutine. Per spec, this runs once during udi.Init, before
// the init request is accepted.
func (d *Dispatcher) Install() {
	sigList := make([]os.Signal, len(constants.CatchableSignals))
	for i, s := range constants.CatchableSignals {
		sigList[i] = s
	}
	signal.Notify(d.ch, sigList...)
	go d.run()
}

// SetPriorHandler registers an application-level callback to receive a
// signal the dispatcher itself decides is not its own — modeling the
// spec's "preserve and indirectly invoke the application's previously-
// registered handler" contract without a real sigaction chain to walk.
func (d *Dispatcher) SetPriorHandler(sig unix.Signal, fn func(os.Signal)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.priorHandlers[sig] = fn
}

// Stop halts signal delivery and drains the goroutine. Safe to call at
// most once.
func (d *Dispatcher) Stop() {
	signal.Stop(d.ch)
	close(d.done)
}

func (d *Dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		case s := <-d.ch:
			d.dispatch(s)
		}
	}
}

func (d *Dispatcher) dispatch(s os.Signal) {
	sysSig, ok := s.(syscall.Signal)
	if !ok {
		return
	}
	sig := unix.Signal(sysSig)

	handled := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Default().Errorf("sigdispatch: handler panicked on signal %v: %v", sig, r)
			}
		}()
		handled = d.handler(sig)
	}()
	if handled {
		return
	}

	d.mu.Lock()
	fn := d.priorHandlers[sig]
	d.mu.Unlock()
	if fn != nil {
		fn(s)
		return
	}
	logging.Default().Warnf("sigdispatch: unhandled signal %v, replaying default disposition", sig)
	replayDefault(sig)
}

// replayDefault restores the signal's default disposition and re-raises it
// against the whole process (kill on its own pid), mirroring what a real kernel-delivered
// signal would do once no handler claims it.
func replayDefault(sig unix.Signal) {
	signal.Reset(sig)
	_ = unix.Kill(os.Getpid(), sig)
}
