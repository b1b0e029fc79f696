package orchestrator

// EventEmitter provides a thread-safe way to emit events to subscribers
// (the request surface's event bus, see internal/events).
type EventEmitter struct {
	events chan Event
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event to the events channel.
// If the channel is full, the event is dropped to avoid blocking.
func (e *EventEmitter) Emit(event Event) {
	select {
	case e.events <- event:
	default:
	}
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel. Called when the orchestrator stops.
func (e *EventEmitter) Close() {
	close(e.events)
}

// Channel returns the underlying channel for direct access.
func (e *EventEmitter) Channel() chan<- Event {
	return e.events
}
