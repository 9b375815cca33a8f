package download

import "coreupdater/internal/plugins"

// EventKind enumerates the closed set of task lifecycle notifications.
type EventKind string

const (
	// EventStarted fires once when the transfer opens.
	EventStarted EventKind = "started"
	// EventProgress carries a fractional progress update in [0,1].
	EventProgress EventKind = "progress"
	// EventFinished fires once on successful install with the plugin handle.
	EventFinished EventKind = "finished"
	// EventFailed fires once on failure or cancellation; Err carries the kind.
	EventFailed EventKind = "failed"
)

// Event is one lifecycle notification from a task.
type Event struct {
	Kind     EventKind
	Progress float64
	Handle   plugins.Handle
	Err      error
}

// Sink receives task events. Sinks run on the task's worker goroutine and
// must not block.
type Sink func(Event)

// Subscribe registers a sink for this task's events and returns its
// unsubscribe function. After unsubscribing, no further events are delivered
// to that sink.
func (t *Task) Subscribe(sink Sink) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextSub
	t.nextSub++
	if t.sinks == nil {
		t.sinks = make(map[int]Sink)
	}
	t.sinks[id] = sink

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.sinks, id)
	}
}

// emit delivers an event to the sinks subscribed at emission time.
func (t *Task) emit(ev Event) {
	t.mu.Lock()
	sinks := make([]Sink, 0, len(t.sinks))
	for _, sink := range t.sinks {
		sinks = append(sinks, sink)
	}
	t.mu.Unlock()

	for _, sink := range sinks {
		sink(ev)
	}
}
