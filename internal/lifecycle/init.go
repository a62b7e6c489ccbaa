package lifecycle

import (
	"os"
	"runtime"

	"github.com/petermattis/goid"

	"github.com/behrlich/udi-agent/internal/bpt"
	"github.com/behrlich/udi-agent/internal/constants"
	"github.com/behrlich/udi-agent/internal/coordinator"
	"github.com/behrlich/udi-agent/internal/engine"
	"github.com/behrlich/udi-agent/internal/events"
	"github.com/behrlich/udi-agent/internal/logging"
	"github.com/behrlich/udi-agent/internal/memaccess"
	"github.com/behrlich/udi-agent/internal/sigdispatch"
	"github.com/behrlich/udi-agent/internal/transport"
	"github.com/behrlich/udi-agent/internal/wire"
)

// Config configures Init. Any zero field falls back to its documented
// default, the same pattern the teacher's DeviceParams/Options split uses
// (required fields vs sensible defaults).
type Config struct {
	// RootDir is the filesystem root the process directory is created
	// under. Empty uses UDI_ROOT_DIR, falling back to constants.DefaultRootDir.
	RootDir string

	// Arch is the debuggee's own architecture. Required.
	Arch wire.Arch

	// Logger receives runtime diagnostics. Nil uses logging.Default().
	Logger *logging.Logger
}

func resolveRootDir(cfg *Config) string {
	if cfg.RootDir != "" {
		return cfg.RootDir
	}
	if v := os.Getenv(constants.EnvRootDir); v != "" {
		return v
	}
	return constants.DefaultRootDir
}

// Init performs the spec §4.9 constructor sequence: this Go port's
// substitute for the "runs before any application code" hook is an
// explicit call the embedding application makes as the first line of its
// own main, documented at the call site (see cmd/udi-example).
//
// In order: resolve configuration, create the filesystem layout, create the
// breakpoint table and memory accessor, create the thread coordinator,
// install the signal dispatcher, create the filesystem layout a second time
// (existing entries are tolerated, so this finds everything in place),
// block for the init request, reply with the handshake fields, open the
// events channel, and register the calling goroutine as the initial thread.
func Init(cfg *Config) (*Process, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	pid := os.Getpid()
	root := resolveRootDir(cfg)
	layout := transport.NewLayout(root, pid)
	if err := layout.CreateProcessDirs(); err != nil {
		return nil, err
	}

	mem := memaccess.NewAccessor()
	bptTable := bpt.New(mem)

	p := &Process{
		pid:       pid,
		arch:      cfg.Arch,
		logger:    logger,
		layout:    layout,
		bpt:       bptTable,
		mem:       mem,
		engine:    engine.New(),
		mux:       transport.NewMultiplexer(),
		threads:   make(map[uint64]*Thread),
		mtCapable: true, // the Go runtime is always prepared to schedule goroutines concurrently
	}
	p.enabled.Store(true)

	coord, err := coordinator.New(pid, p)
	if err != nil {
		return nil, err
	}
	p.coord = coord

	p.dispatcher = sigdispatch.New(p.signalHandler)
	p.dispatcher.Install()

	if err := layout.CreateProcessDirs(); err != nil {
		return nil, err
	}

	// Block for the debugger's init request on the process channel. Opening
	// a FIFO for read blocks until a peer has opened the write end, which is
	// this port's realization of "block for the init request".
	procReq, err := transport.OpenRead(layout.RequestPath())
	if err != nil {
		return nil, err
	}
	p.procReq = procReq
	p.reqDec = wire.NewDecoder(procReq.File())

	initReq, err := p.reqDec.DecodeRequest()
	if err != nil {
		return nil, err
	}

	procResp, err := transport.OpenWrite(layout.ResponsePath())
	if err != nil {
		return nil, err
	}
	p.procResp = procResp
	p.respEnc = wire.NewEncoder(procResp.File())

	selfTID := uint64(goid.Get())
	respFields := map[string]any{
		"v":    wire.ProtocolVersion1,
		"arch": uint16(cfg.Arch),
		"mt":   true,
		"tid":  selfTID,
	}
	initResp := wire.NewValidResponse(initReq.Type, respFields)
	if err := p.respEnc.EncodeResponse(initResp); err != nil {
		return nil, err
	}

	eventsCh, err := transport.OpenWrite(layout.EventsPath())
	if err != nil {
		return nil, err
	}
	p.events = eventsCh
	p.latch = transport.NewPipeLatch()
	p.publisher = events.New(wire.NewEncoder(eventsCh.File()), p.latch).WithLogger(logger)

	p.mux.Add(procMuxKey, procReq)

	if _, err := p.registerThread(selfTID); err != nil {
		return nil, err
	}

	logger.Info("udi runtime attached", "pid", pid, "root", root)
	return p, nil
}

// registerThread creates a thread's channels and control pipe and adds it
// to the registry and multiplexer. It publishes no event: NewThread
// publishes thread_create for a spawned thread, and the initial thread has
// no thread_create event (its tid goes out in the init response).
func (p *Process) registerThread(tid uint64) (*Thread, error) {
	if err := p.layout.CreateThreadDirs(tid); err != nil {
		return nil, err
	}

	reqCh, err := transport.OpenRead(p.layout.ThreadRequestPath(tid))
	if err != nil {
		return nil, err
	}
	respCh, err := transport.OpenWrite(p.layout.ThreadResponsePath(tid))
	if err != nil {
		return nil, err
	}
	pipe, err := coordinator.NewControlPipe()
	if err != nil {
		return nil, err
	}

	t := &Thread{
		tid:     tid,
		proc:    p,
		reqCh:   reqCh,
		respCh:  respCh,
		reqDec:  wire.NewDecoder(reqCh.File()),
		respEnc: wire.NewEncoder(respCh.File()),
		pipe:    pipe,
		state:   wire.ThreadRunning,
	}
	p.addThread(t)
	p.mux.Add(threadMuxKey(tid), reqCh)
	return t, nil
}

// NewThread registers a new debuggee thread and runs fn on a
// runtime.LockOSThread-pinned goroutine, publishing thread_create before fn
// starts and thread_death after it returns. When fn returns, the goroutine
// marks the thread dead, publishes thread_death, and exits without waiting
// for a debugger command; the thread's channels are torn down by the next
// continue that finds it marked dead. This is the Go port's substitute for
// intercepting
// pthread_create: the application calls NewThread instead of starting a
// bare goroutine directly wherever it wants the runtime to track the new
// thread, mirroring the teacher's runtime.LockOSThread-per-queue pattern in
// internal/queue/runner.go's ioLoop.
func (p *Process) NewThread(fn func(t *Thread)) <-chan struct{} {
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		tid := uint64(goid.Get())
		t, err := p.registerThread(tid)
		if err != nil {
			p.logger.Error("lifecycle: failed to register new thread", "error", err)
			close(started)
			close(done)
			return
		}
		if creator := p.defaultThread(); creator != nil {
			_ = p.publisher.Publish(wire.EventThreadCreate, creator.tid, map[string]any{"tid": tid})
		}
		close(started)

		fn(t)

		t.markDead()
		_ = p.publisher.Publish(wire.EventThreadDeath, tid, nil)
		close(done)
	}()
	<-started
	return done
}

// Exit is the Go port's substitute for intercepting a raw exit_group
// syscall: the embedding application calls this instead of os.Exit so the
// runtime can publish process_exit and tear down its filesystem layout
// first, matching spec's exit-entry-point breakpoint without a portable
// way to patch the runtime's own exit path.
//
// exiting is latched before the event goes out, per spec §4.9: "exiting is
// latched; the next continue removes the filesystem layout". The request
// loop is then driven one more time so the debugger's final continue is
// actually received and answered before the layout disappears out from
// under it, instead of racing teardown against that response.
func (p *Process) Exit(code int) {
	p.exiting.Store(true)
	self := p.defaultThread()

	_ = p.publisher.Publish(wire.EventProcessExit, defaultThreadIDOr(p), map[string]any{"code": int32(code)})

	if self != nil {
		if err := p.serveUntilContinue(self); err != nil {
			p.logger.Error("lifecycle: failed to service final continue before exit", "error", err)
		}
	}

	p.teardown()
	os.Exit(code)
}

func defaultThreadIDOr(p *Process) uint64 {
	if t := p.defaultThread(); t != nil {
		return t.tid
	}
	return wire.SingleThreadID
}

// NotifyFork reports a fork the application performed itself (via
// syscall.ForkExec or os/exec) and blocks for the parent's next command,
// per spec §4.9's fork paragraph. Forked-child reinitialization is
// explicitly out of this runtime's concern (spec Non-goals).
func (p *Process) NotifyFork(childPID uint32) error {
	self := p.defaultThread()
	tid := wire.SingleThreadID
	if self != nil {
		tid = self.tid
	}
	if err := p.publisher.Publish(wire.EventProcessFork, tid, map[string]any{"pid": childPID}); err != nil {
		return err
	}
	if self != nil {
		return p.serveUntilContinue(self)
	}
	return nil
}

func (p *Process) teardown() {
	p.dispatcher.Stop()
	if p.latch != nil {
		p.latch.Stop()
	}
	if p.procReq != nil {
		p.procReq.Close()
	}
	if p.procResp != nil {
		p.procResp.Close()
	}
	if p.events != nil {
		p.events.Close()
	}
	_ = p.layout.RemoveProcessDirs()
}
