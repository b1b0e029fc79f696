// Package events implements the control plane's general event bus: the
// asynchronous counterpart to the Request Surface's synchronous
// operations. It generalizes internal/orchestrator's own task-scoped
// Event/EventEmitter to every event kind the Request Surface exposes
// (task, terminal, roadmap, ideation, framework update, and issue
// investigation), ordered per (task id | terminal id | project id) key.
package events

import (
	"sync"
	"time"
)

// Kind classifies an event on the bus.
type Kind string

const (
	KindTaskLog      Kind = "task.log"
	KindTaskError    Kind = "task.error"
	KindTaskStatus   Kind = "task.status"
	KindTaskProgress Kind = "task.progress"

	KindTerminalOutput      Kind = "terminal.output"
	KindTerminalExit        Kind = "terminal.exit"
	KindTerminalTitleChange Kind = "terminal.titleChange"

	KindRoadmapProgress Kind = "roadmap.progress"
	KindRoadmapComplete Kind = "roadmap.complete"
	KindRoadmapError    Kind = "roadmap.error"

	KindIdeationProgress Kind = "ideation.progress"
	KindIdeationComplete Kind = "ideation.complete"
	KindIdeationError    Kind = "ideation.error"

	KindFrameworkUpdateProgress Kind = "framework-update.progress"

	KindGithubInvestigationProgress Kind = "github.investigation.progress"
	KindGithubInvestigationComplete Kind = "github.investigation.complete"
	KindGithubInvestigationError    Kind = "github.investigation.error"
)

// Event is one message on the bus.
type Event struct {
	// Kind identifies what happened.
	Kind Kind
	// Key partitions ordering: a task id, terminal id, or project id
	// depending on Kind. Events sharing a Key are delivered to
	// subscribers in publish order; across Keys order is unspecified.
	Key string
	// Payload carries kind-specific data (a models.Progress, a log
	// line, an error, terminal output bytes, ...).
	Payload any
	// Timestamp is when the event was published.
	Timestamp time.Time
}

// perKeyBuffer bounds how many queued events accumulate for one key
// before Publish starts dropping, so one noisy key (a chatty task.log
// stream) can't grow the bus's memory use without bound.
const perKeyBuffer = 256

// Bus fans events in from many producers and serializes them onto one
// output stream, preserving each key's publish order. One Bus serves
// the whole control plane; every task, terminal, and project shares it.
type Bus struct {
	out chan Event

	mu     sync.Mutex
	keys   map[string]chan Event
	wg     sync.WaitGroup
	closed bool
}

// NewBus creates a Bus with the given output buffer size.
func NewBus(outBuffer int) *Bus {
	return &Bus{
		out:  make(chan Event, outBuffer),
		keys: make(map[string]chan Event),
	}
}

// Publish enqueues an event under key, starting that key's forwarder
// goroutine on first use. Non-blocking: a full per-key queue drops the
// new event rather than blocking the caller, matching
// internal/orchestrator.EventEmitter.Emit's drop-under-pressure
// behavior.
func (b *Bus) Publish(kind Kind, key string, payload any) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	ch, ok := b.keys[key]
	if !ok {
		ch = make(chan Event, perKeyBuffer)
		b.keys[key] = ch
		b.wg.Add(1)
		go b.forward(ch)
	}
	b.mu.Unlock()

	select {
	case ch <- Event{Kind: kind, Key: key, Payload: payload, Timestamp: time.Now()}:
	default:
	}
}

// forward drains one key's channel onto the shared output stream until
// the bus closes it.
func (b *Bus) forward(ch chan Event) {
	defer b.wg.Done()
	for ev := range ch {
		select {
		case b.out <- ev:
		default:
		}
	}
}

// Subscribe returns the bus's single shared output stream. The Request
// Surface owns the one long-lived consumer (serve.go's event-printing
// loop, or the equivalent IPC forwarder); terminal byte streams have
// their own dedicated per-subscriber fan-out in internal/termdaemon and
// are published here only as terminal.exit/titleChange milestones.
func (b *Bus) Subscribe() <-chan Event {
	return b.out
}

// Close stops accepting new events, drains and closes every per-key
// channel, and closes the output stream once all forwarders have
// exited.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	chans := make([]chan Event, 0, len(b.keys))
	for _, ch := range b.keys {
		chans = append(chans, ch)
	}
	b.mu.Unlock()

	for _, ch := range chans {
		close(ch)
	}
	b.wg.Wait()
	close(b.out)
}
