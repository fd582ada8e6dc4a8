package events

import "perpcore/core/types"

// Event represents a structured state change emitted by an engine.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (journal, metrics,
// indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
// Engines default to it so event wiring stays optional in tests.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// FanOut forwards every event to each wrapped emitter in order.
type FanOut []Emitter

// Emit implements the Emitter interface.
func (f FanOut) Emit(evt Event) {
	for _, e := range f {
		if e != nil {
			e.Emit(evt)
		}
	}
}

// Recorder accumulates events in memory. It is primarily a test helper but
// also backs the daemon's most-recent-events inspection endpoint.
type Recorder struct {
	Events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil {
		return
	}
	r.Events = append(r.Events, evt)
}

// ByType returns the recorded events matching the supplied type.
func (r *Recorder) ByType(eventType string) []Event {
	if r == nil {
		return nil
	}
	var out []Event
	for _, evt := range r.Events {
		if evt.EventType() == eventType {
			out = append(out, evt)
		}
	}
	return out
}
