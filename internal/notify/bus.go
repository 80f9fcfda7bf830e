package notify

import (
	"context"
	"log"
	"time"
)

const deliverTimeout = 5 * time.Second

// Bus is a bounded in-process queue between services and a Sink. Services
// publish after their transaction commits; a single Run loop delivers.
type Bus struct {
	events chan Event
	sink   Sink
}

// NewBus creates a Bus holding at most size undelivered events.
func NewBus(sink Sink, size int) *Bus {
	if size <= 0 {
		size = 256
	}
	return &Bus{events: make(chan Event, size), sink: sink}
}

// Publish enqueues e. When the queue is full the event is dropped and logged.
func (b *Bus) Publish(e Event) {
	select {
	case b.events <- e:
	default:
		log.Printf("WARN: notification bus full, dropping %s event for room %q", e.Type, e.Room)
	}
}

// Run delivers events until ctx is cancelled. Remaining queued events are
// flushed before returning.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.drain()
			return
		case e := <-b.events:
			b.deliver(context.Background(), e)
		}
	}
}

func (b *Bus) drain() {
	for {
		select {
		case e := <-b.events:
			b.deliver(context.Background(), e)
		default:
			return
		}
	}
}

func (b *Bus) deliver(ctx context.Context, e Event) {
	ctx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()
	if err := b.sink.Deliver(ctx, e); err != nil {
		log.Printf("ERROR: deliver %s event to room %q: %v", e.Type, e.Room, err)
	}
}
