package testutil

import (
	"sync"

	"github.com/zysilm-ai/open-claude-pilot/core"
)

// EventRecorder captures emitted events. It is safe for concurrent use.
type EventRecorder struct {
	mu     sync.Mutex
	events []core.Event
	failOn func(core.Event) error
}

// NewEventRecorder creates an empty recorder.
func NewEventRecorder() *EventRecorder { return &EventRecorder{} }

// FailWhen makes Emit return the error produced by fn (when non-nil)
// instead of recording the event.
func (r *EventRecorder) FailWhen(fn func(core.Event) error) *EventRecorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn = fn
	return r
}

// Emit records ev; it matches agent.EmitFunc.
func (r *EventRecorder) Emit(ev core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != nil {
		if err := r.failOn(ev); err != nil {
			return err
		}
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *EventRecorder) OfType(t core.EventType) []core.Event {
	var out []core.Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Types returns the type sequence of the recorded events.
func (r *EventRecorder) Types() []core.EventType {
	evs := r.Events()
	out := make([]core.EventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

// Content concatenates the content of all chunk events.
func (r *EventRecorder) Content() string {
	var s string
	for _, ev := range r.OfType(core.EventChunk) {
		s += ev.Content
	}
	return s
}
