package events

import (
	"errors"
	"testing"

	"github.com/behrlich/udi-agent/internal/wire"
)

type recordingEncoder struct {
	events []*wire.Event
	failOn wire.EventType
	failed bool
}

func (e *recordingEncoder) EncodeEvent(ev *wire.Event) error {
	if ev.Type == e.failOn && !e.failed {
		e.failed = true
		return errors.New("simulated write failure")
	}
	e.events = append(e.events, ev)
	return nil
}

func TestPublishSuccess(t *testing.T) {
	enc := &recordingEncoder{}
	pub := New(enc, nil)

	if err := pub.Publish(wire.EventBreakpoint, 42, map[string]any{"addr": uint64(0x1000)}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(enc.events) != 1 {
		t.Fatalf("expected 1 event written, got %d", len(enc.events))
	}
	if pub.Metrics().Snapshot().BreakpointEvents != 1 {
		t.Fatalf("expected breakpoint counter to be 1")
	}
}

type recordingObserver struct {
	events   []string
	failures []string
}

func (o *recordingObserver) ObserveEvent(evType string, tid uint64) {
	o.events = append(o.events, evType)
}
func (o *recordingObserver) ObservePublishFailure(evType string, tid uint64) {
	o.failures = append(o.failures, evType)
}

func TestPublishNotifiesObserver(t *testing.T) {
	enc := &recordingEncoder{}
	obs := &recordingObserver{}
	pub := New(enc, nil).WithObserver(obs)

	if err := pub.Publish(wire.EventSingleStep, 1, nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(obs.events) != 1 || obs.events[0] != wire.EventSingleStep.String() {
		t.Fatalf("expected observer to see the published event, got %+v", obs.events)
	}
}

func TestPublishFailureNotifiesObserver(t *testing.T) {
	enc := &recordingEncoder{failOn: wire.EventSignal}
	obs := &recordingObserver{}
	pub := New(enc, nil).WithObserver(obs)

	if err := pub.Publish(wire.EventSignal, 1, nil); err != nil {
		t.Fatalf("Publish should recover via error-event fallback: %v", err)
	}
	if len(obs.failures) != 1 || obs.failures[0] != wire.EventSignal.String() {
		t.Fatalf("expected observer to see the publish failure, got %+v", obs.failures)
	}
}

func TestPublishFailureFallsBackToErrorEvent(t *testing.T) {
	enc := &recordingEncoder{failOn: wire.EventBreakpoint}
	pub := New(enc, nil)

	if err := pub.Publish(wire.EventBreakpoint, 1, map[string]any{"addr": uint64(0x1)}); err != nil {
		t.Fatalf("Publish should recover via error-event fallback: %v", err)
	}
	if len(enc.events) != 1 || enc.events[0].Type != wire.EventError {
		t.Fatalf("expected a fallback error event, got %+v", enc.events)
	}
	if pub.Metrics().Snapshot().PublishFailures != 1 {
		t.Fatalf("expected one publish failure recorded")
	}
}
