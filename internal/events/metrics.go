package events

import "sync/atomic"

// Metrics counts events published over the lifetime of a process, plus
// publish failures, adapted from the teacher's I/O Metrics/MetricsSnapshot
// shape (field-for-field atomic counters) but renamed from disk-I/O
// counters to the event taxonomy this runtime actually emits. It records
// no latencies.
type Metrics struct {
	BreakpointEvents   atomic.Uint64
	SingleStepEvents   atomic.Uint64
	ThreadCreateEvents atomic.Uint64
	ThreadDeathEvents  atomic.Uint64
	ProcessExitEvents  atomic.Uint64
	ProcessForkEvents  atomic.Uint64
	SignalEvents       atomic.Uint64
	ErrorEvents        atomic.Uint64
	UnknownEvents      atomic.Uint64

	PublishFailures atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to read without
// racing the atomics that produced it.
type MetricsSnapshot struct {
	BreakpointEvents   uint64
	SingleStepEvents   uint64
	ThreadCreateEvents uint64
	ThreadDeathEvents  uint64
	ProcessExitEvents  uint64
	ProcessForkEvents  uint64
	SignalEvents       uint64
	ErrorEvents        uint64
	UnknownEvents      uint64
	PublishFailures    uint64
	TotalEvents        uint64
}

// Snapshot copies every counter into a MetricsSnapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		BreakpointEvents:   m.BreakpointEvents.Load(),
		SingleStepEvents:   m.SingleStepEvents.Load(),
		ThreadCreateEvents: m.ThreadCreateEvents.Load(),
		ThreadDeathEvents:  m.ThreadDeathEvents.Load(),
		ProcessExitEvents:  m.ProcessExitEvents.Load(),
		ProcessForkEvents:  m.ProcessForkEvents.Load(),
		SignalEvents:       m.SignalEvents.Load(),
		ErrorEvents:        m.ErrorEvents.Load(),
		UnknownEvents:      m.UnknownEvents.Load(),
		PublishFailures:    m.PublishFailures.Load(),
	}
	s.TotalEvents = s.BreakpointEvents + s.SingleStepEvents + s.ThreadCreateEvents +
		s.ThreadDeathEvents + s.ProcessExitEvents + s.ProcessForkEvents +
		s.SignalEvents + s.ErrorEvents + s.UnknownEvents
	return s
}
