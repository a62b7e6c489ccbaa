package lifecycle

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/behrlich/udi-agent/internal/udierr"
	"github.com/behrlich/udi-agent/internal/wire"
)

// procMuxKey is the multiplexer key for the process request channel.
const procMuxKey = "proc"

// threadMuxKey is the multiplexer key for a thread's request channel,
// matching internal/transport.Layout's hex thread-directory naming.
func threadMuxKey(tid uint64) string {
	return fmt.Sprintf("%x", tid)
}

// serveUntilContinue is the request engine's steady-state loop (C8): it
// waits for the next readable request channel, dispatches it, writes the
// response, and keeps looping until a continue request completes —
// exactly the "request loop" step of the spec §4.6 entry procedure.
func (p *Process) serveUntilContinue(self *Thread) error {
	for {
		key, err := p.mux.WaitReadable()
		if err != nil {
			return err
		}

		var done bool
		if key == procMuxKey {
			done, err = p.serveOneProcessRequest(self)
		} else {
			done, err = p.serveOneThreadRequest(key, self)
		}
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (p *Process) serveOneProcessRequest(self *Thread) (done bool, err error) {
	req, err := p.reqDec.DecodeRequest()
	if err != nil {
		return false, err
	}

	resp, herr := p.engine.DispatchProcess(p, req)
	resp = p.finishResponse(self, req, resp, herr)

	if err := p.respEnc.EncodeResponse(resp); err != nil {
		p.latch.MarkBrokenFromErr(err)
		return false, err
	}

	if req.Type == wire.ReqContinue {
		return true, p.finishContinue(self)
	}
	if udierr.IsFatal(herr) {
		p.Disable()
		udierr.Abort()
		return true, herr
	}
	return false, nil
}

func (p *Process) serveOneThreadRequest(key string, self *Thread) (done bool, err error) {
	tid, perr := strconv.ParseUint(key, 16, 64)
	if perr != nil {
		return false, udierr.New("lifecycle.serveOneThreadRequest", udierr.ErrCodeProtocol, "bad multiplexer key")
	}
	peer, ok := p.Thread(tid)
	if !ok {
		return false, udierr.New("lifecycle.serveOneThreadRequest", udierr.ErrCodeNoSuchThread, "unknown thread")
	}
	t := peer.(*Thread)

	req, err := t.reqDec.DecodeRequest()
	if err != nil {
		return false, err
	}

	resp, herr := p.engine.DispatchThread(p, t, req)
	resp = p.finishResponse(self, req, resp, herr)

	if err := t.respEnc.EncodeResponse(resp); err != nil {
		return false, err
	}
	if udierr.IsFatal(herr) {
		p.Disable()
		udierr.Abort()
		return true, herr
	}
	return false, nil
}

// finishResponse converts a handler error into a wire error response,
// leaving a successful response untouched.
func (p *Process) finishResponse(self *Thread, req *wire.Request, resp *wire.Response, herr error) *wire.Response {
	if herr == nil {
		return resp
	}
	if udierr.IsFatal(herr) {
		_ = p.publisher.PublishError(self.tid, herr.Error())
	}
	return wire.NewErrorResponse(req.Type, herr.Error())
}

// finishContinue completes the continue sequence once its response has
// been written: resume self, release every other parked thread, replay any
// signal the debugger asked to deliver, and disable the runtime if the
// response/events channel was found broken during this stop (spec §7: "if
// the channel broke due to SIGPIPE, the runtime disables itself on the
// next continue to let the debuggee run to completion unattended").
func (p *Process) finishContinue(self *Thread) error {
	self.SetRunState(wire.ThreadRunning)
	if err := p.coord.ReleaseOtherThreads(self); err != nil {
		return err
	}
	if sig := self.PendingSignal(); sig != 0 {
		_ = unix.Kill(p.pid, unix.Signal(sig))
		self.SetPendingSignal(0)
	}
	if p.latch != nil && p.latch.Broken() {
		p.Disable()
	}
	return nil
}
