package warpq

import (
	"sync"
	"time"
)

// EventType names a scheduler notification.
type EventType string

const (
	// EventAdded fires when a key enters the queue or moves to another level.
	EventAdded EventType = "added"
	// EventRemoved fires when a queued key is removed before being dispatched.
	EventRemoved EventType = "removed"
	// EventReseted fires when the whole queue is emptied.
	EventReseted EventType = "reseted"
	// EventDownloading fires when a key is popped and its transfer starts.
	EventDownloading EventType = "downloading"
	// EventSuccess fires when a transfer completes with a payload.
	EventSuccess EventType = "success"
	// EventFailed fires on a protocol failure or a transport error.
	EventFailed EventType = "failed"
	// EventAborted fires when a transfer ends after Abort was called for it.
	EventAborted EventType = "aborted"
)

// EventTypes lists every event the scheduler emits.
var EventTypes = []EventType{
	EventAdded,
	EventRemoved,
	EventReseted,
	EventDownloading,
	EventSuccess,
	EventFailed,
	EventAborted,
}

// IsTerminal reports whether the event ends a transfer attempt.
func (t EventType) IsTerminal() bool {
	return t == EventSuccess || t == EventFailed || t == EventAborted
}

// Event is the payload of a notification. Only the fields relevant to its
// Type are set.
type Event struct {
	Type EventType
	Key  string
	// Level is set for EventAdded.
	Level int
	// Attempt identifies the transfer for transfer events.
	Attempt string
	// Payload and Elapsed are set for EventSuccess.
	Payload []byte
	Elapsed time.Duration
	// Err is set for EventFailed.
	Err error
	At  time.Time
}

// Handler receives notifications.
type Handler func(Event)

// Notifier registers handlers and emits events to them.
type Notifier interface {
	On(t EventType, h Handler)
	Emit(e Event)
}

// Emitter is the default Notifier. Handlers are invoked synchronously, in
// registration order, on the goroutine calling Emit. Events without handlers
// are dropped.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEmitter creates an Emitter without handlers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// On registers h for events of type t. Nil handlers are ignored.
func (e *Emitter) On(t EventType, h Handler) {
	if h == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[t] = append(e.handlers[t], h)
}

// OnAll registers h for every scheduler event.
func (e *Emitter) OnAll(h Handler) {
	for _, t := range EventTypes {
		e.On(t, h)
	}
}

// Emit delivers ev to the handlers registered for its type.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	hs := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range hs {
		h(ev)
	}
}

var _ Notifier = (*Emitter)(nil)
