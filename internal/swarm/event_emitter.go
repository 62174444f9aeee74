package swarm

import (
	"log"
	"sync/atomic"
	"time"
)

// emitWait bounds how long Emit waits for a slow consumer before the
// event is dropped.
const emitWait = 25 * time.Millisecond

// EventEmitter fans orchestrator progress events out to a single buffered
// channel. Consumers that fall behind lose events rather than stalling the
// run loop; drops are counted and surfaced in snapshots.
type EventEmitter struct {
	events  chan Event
	dropped atomic.Uint64
}

// NewEventEmitter creates an emitter with the given channel capacity.
func NewEventEmitter(capacity int) *EventEmitter {
	return &EventEmitter{events: make(chan Event, capacity)}
}

// Emit queues an event. When the buffer is full it waits up to emitWait
// for the consumer to catch up, then drops the event and counts it.
func (e *EventEmitter) Emit(event Event) {
	select {
	case e.events <- event:
		return
	default:
	}

	t := time.NewTimer(emitWait)
	defer t.Stop()
	select {
	case e.events <- event:
	case <-t.C:
		n := e.dropped.Add(1)
		debugLog("[events] dropped %s event, consumer behind (%d total)", event.Type, n)
		if n == 1 || n%100 == 0 {
			log.Printf("[swarm] WARNING: event consumer is behind, %d events dropped so far", n)
		}
	}
}

// DroppedCount reports how many events were dropped on slow consumers.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.dropped.Load()
}

// Events returns the consumer side of the event stream.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close ends the stream. Emit must not be called afterwards.
func (e *EventEmitter) Close() {
	close(e.events)
}
