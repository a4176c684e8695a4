package pipeline

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/career-coach/internal/logx"
)

// Event names on the wire.
const (
	EventProgress = "progress"
	EventComplete = "complete"
	EventError    = "error"
)

// Event is one of Progress, Complete or ErrorEvent.
type Event interface {
	EventName() string
	isEvent()
}

// Progress announces that a pipeline step has started.
type Progress struct {
	Step    int    `json:"step"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// Complete carries the stored result. It is the last event of a successful run.
type Complete struct {
	ResultID uuid.UUID      `json:"result_id"`
	Result   map[string]any `json:"result"`
}

// ErrorEvent ends a failed run. Message is what the caller displays.
type ErrorEvent struct {
	Message string `json:"error"`
	Code    Code   `json:"code"`
}

func (Progress) EventName() string   { return EventProgress }
func (Complete) EventName() string   { return EventComplete }
func (ErrorEvent) EventName() string { return EventError }

func (Progress) isEvent()   {}
func (Complete) isEvent()   {}
func (ErrorEvent) isEvent() {}

// Emitter receives pipeline events in order. Emit must not block for long;
// the transport behind it owns buffering.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit calls f(e).
func (f EmitterFunc) Emit(e Event) { f(e) }

// Recorder is an Emitter that keeps every event. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Names returns the recorded event names.
func (r *Recorder) Names() []string {
	events := r.Events()
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.EventName()
	}
	return names
}

// sequencer forwards events while enforcing stream order: progress steps never
// go backwards and nothing follows a terminal event.
type sequencer struct {
	out      Emitter
	lastStep int
	closed   bool
}

func (s *sequencer) Emit(e Event) {
	if s.closed {
		logx.Error().Str("event", e.EventName()).Msg("event after terminal event dropped")
		return
	}
	switch ev := e.(type) {
	case Progress:
		if ev.Step < s.lastStep {
			logx.Error().Int("step", ev.Step).Int("last_step", s.lastStep).Msg("out of order progress dropped")
			return
		}
		s.lastStep = ev.Step
	case Complete, ErrorEvent:
		s.closed = true
	}
	s.out.Emit(e)
}
