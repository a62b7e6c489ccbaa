// Package events implements the event publisher (C10): a synchronous,
// serialized writer for breakpoint/step/thread/exit/fork/signal/error
// events on the events channel (or a thread's response channel for
// thread-scoped events), plus atomic event-count metrics.
package events

import (
	"sync"

	"github.com/behrlich/udi-agent/internal/interfaces"
	"github.com/behrlich/udi-agent/internal/transport"
	"github.com/behrlich/udi-agent/internal/udierr"
	"github.com/behrlich/udi-agent/internal/wire"
)

// Encoder is the wire-level dependency Publisher needs: just enough of
// *wire.Encoder to write one event item.
type Encoder interface {
	EncodeEvent(*wire.Event) error
}

// Publisher serializes every event write: concurrent goroutines publishing
// at once would otherwise interleave partial CBOR items on the channel.
type Publisher struct {
	mu       sync.Mutex
	enc      Encoder
	latch    *transport.PipeLatch
	metrics  *Metrics
	observer interfaces.Observer
	logger   interfaces.Logger
}

// New returns a Publisher writing through enc. latch may be nil if the
// underlying channel has no SIGPIPE latch wired (e.g. a test double).
func New(enc Encoder, latch *transport.PipeLatch) *Publisher {
	return &Publisher{enc: enc, latch: latch, metrics: &Metrics{}}
}

// WithObserver attaches an external observer that mirrors the publisher's
// own atomic Metrics to a caller-supplied sink (e.g. a process-wide metrics
// exporter). Returns p for chaining at construction time.
func (p *Publisher) WithObserver(o interfaces.Observer) *Publisher {
	p.observer = o
	return p
}

// WithLogger attaches a logger used to report publish failures. Returns p
// for chaining at construction time.
func (p *Publisher) WithLogger(l interfaces.Logger) *Publisher {
	p.logger = l
	return p
}

// Metrics exposes the publisher's counters.
func (p *Publisher) Metrics() *Metrics { return p.metrics }

// Publish writes one event, blocking until the debugger has drained it (the
// FIFO write completes) per spec §4.10. A write failure is converted to a
// best-effort error event; if that also fails, the original error is
// returned so the caller can disable the runtime.
func (p *Publisher) Publish(evType wire.EventType, tid uint64, fields map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fields == nil {
		fields = map[string]any{}
	}
	ev := &wire.Event{Type: evType, TID: tid, Fields: fields}

	err := p.enc.EncodeEvent(ev)
	if err == nil {
		p.count(evType)
		if p.observer != nil {
			p.observer.ObserveEvent(evType.String(), tid)
		}
		return nil
	}

	p.metrics.PublishFailures.Add(1)
	if p.observer != nil {
		p.observer.ObservePublishFailure(evType.String(), tid)
	}
	if p.logger != nil {
		p.logger.Debugf("events: publish %s failed for tid %d: %v", evType, tid, err)
	}
	if p.latch != nil {
		p.latch.MarkBrokenFromErr(err)
	}

	if evType == wire.EventError {
		// Avoid recursing into PublishError for a publish failure that was
		// itself an error event.
		return err
	}
	if pubErr := p.PublishError(tid, err.Error()); pubErr != nil {
		return err
	}
	return nil
}

// PublishError writes an error event directly, bypassing the recursive
// best-effort fallback Publish applies to every other event type.
func (p *Publisher) PublishError(tid uint64, msg string) error {
	ev := wire.NewErrorEvent(tid, msg)
	if err := p.enc.EncodeEvent(ev); err != nil {
		p.metrics.PublishFailures.Add(1)
		if p.latch != nil {
			p.latch.MarkBrokenFromErr(err)
		}
		return udierr.Wrap("events.PublishError", err)
	}
	p.metrics.ErrorEvents.Add(1)
	return nil
}

func (p *Publisher) count(evType wire.EventType) {
	switch evType {
	case wire.EventBreakpoint:
		p.metrics.BreakpointEvents.Add(1)
	case wire.EventSingleStep:
		p.metrics.SingleStepEvents.Add(1)
	case wire.EventThreadCreate:
		p.metrics.ThreadCreateEvents.Add(1)
	case wire.EventThreadDeath:
		p.metrics.ThreadDeathEvents.Add(1)
	case wire.EventProcessExit:
		p.metrics.ProcessExitEvents.Add(1)
	case wire.EventProcessFork:
		p.metrics.ProcessForkEvents.Add(1)
	case wire.EventSignal:
		p.metrics.SignalEvents.Add(1)
	case wire.EventError:
		p.metrics.ErrorEvents.Add(1)
	default:
		p.metrics.UnknownEvents.Add(1)
	}
}
