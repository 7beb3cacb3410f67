// -*- tab-width:2 -*-

package rpcq

import (
	"fmt"
	"sync"

	count "github.com/jayalane/go-counter"
)

// EventKind distinguishes dispatcher events.
type EventKind int

const (
	// Issued is the first attempt of a call.
	Issued EventKind = iota
	// Retry is a re-issue after a timeout.
	Retry
	// Success is the matching response arriving.
	Success
	// Skipped is a call with no expected response finishing.
	Skipped
	// Exhausted is a call dropped after its last timeout.
	Exhausted
	// Stale is a response nobody was waiting for.
	Stale
	// Drained is the queue running dry.
	Drained
)

func (k EventKind) String() string {
	switch k {
	case Issued:
		return "issued"
	case Retry:
		return "retry"
	case Success:
		return "success"
	case Skipped:
		return "skipped"
	case Exhausted:
		return "exhausted"
	case Stale:
		return "stale"
	case Drained:
		return "drained"
	}

	return fmt.Sprintf("event(%d)", int(k))
}

// Event is one observable step of a dispatch run.
type Event struct {
	Kind    EventKind
	Call    string
	Tag     string
	Attempt int
	Payload []any
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s tag=%q attempt=%d", e.Kind, e.Call, e.Tag, e.Attempt)
}

// Broadcaster fans events out to subscribers without blocking the
// event loop.
type Broadcaster struct {
	subscribers []chan Event
	mu          sync.Mutex
}

// NewBroadcaster creates a new Broadcaster.
func NewBroadcaster() *Broadcaster {
	Init()

	return &Broadcaster{}
}

// Subscribe adds a new subscriber with room for size events.
func (b *Broadcaster) Subscribe(size int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, size)
	b.subscribers = append(b.subscribers, ch)

	return ch
}

// Broadcast sends the event to all subscribers; full subscribers
// miss it.
func (b *Broadcaster) Broadcast(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	count.IncrSync("broadcaster_broadcast_input")

	for _, ch := range b.subscribers {
		select {
		case ch <- e:
			count.IncrSync("broadcaster_broadcast_output")
		default:
			ml.La("Dropped subscriber select", e)
			count.IncrSync("broadcaster_drop_output")
		}
	}
}

// Close closes every subscriber channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		close(ch)
	}

	b.subscribers = nil
}
