// -*- tab-width:2 -*-

package rpcq

import (
	"container/heap"
	"time"

	count "github.com/jayalane/go-counter"
)

// Loop is the virtual time event loop for a dispatch run.
// Everything scheduled on it runs on the goroutine that calls
// Run or Step, one event at a time, in wakeup order.
type Loop struct {
	name    string
	time    Milliseconds
	seq     uint64
	next    TimerHandle
	events  PQueue
	pending map[TimerHandle]*Item
}

// NewLoop initializes and returns a virtual time loop.
func NewLoop(name string) *Loop {
	Init()

	return &Loop{
		name:    name,
		pending: make(map[TimerHandle]*Item),
	}
}

// GetTime returns the current virtual time.
func (l *Loop) GetTime() Milliseconds {
	return l.time
}

// Elapsed returns the current virtual time as a duration.
func (l *Loop) Elapsed() time.Duration {
	return toDuration(l.time)
}

// Schedule runs f after d of virtual time.
func (l *Loop) Schedule(d time.Duration, f func()) TimerHandle {
	if d < 0 {
		d = 0
	}

	l.seq++
	l.next++

	item := &Item{
		fn:     f,
		wakeup: l.time + toMilliseconds(d),
		seq:    l.seq,
		handle: l.next,
	}
	heap.Push(&l.events, item)
	l.pending[item.handle] = item

	ml.La(l.name+": scheduled", item.handle, "for", item.wakeup)

	return item.handle
}

// Cancel removes a scheduled event. Unknown or already fired
// handles are ignored.
func (l *Loop) Cancel(h TimerHandle) {
	item, ok := l.pending[h]
	if !ok {
		return
	}

	delete(l.pending, h)
	heap.Remove(&l.events, item.index)
	count.IncrSyncSuffix("loop_cancel", l.name)
	ml.La(l.name+": cancelled", h)
}

// Pending returns the number of scheduled events.
func (l *Loop) Pending() int {
	return len(l.events)
}

// Step runs the next event, advancing time to it. It returns false
// when nothing is scheduled.
func (l *Loop) Step() bool {
	if len(l.events) == 0 {
		return false
	}

	item := heap.Pop(&l.events).(*Item) //nolint:forcetypeassert
	delete(l.pending, item.handle)

	if item.wakeup > l.time {
		l.time = item.wakeup
	}

	count.IncrSyncSuffix("loop_event", l.name)
	item.fn()

	return true
}

// Run drives the loop until no events remain or the next event is
// later than limit (zero means no limit). It returns the number of
// events run.
func (l *Loop) Run(limit time.Duration) int {
	n := 0
	end := toMilliseconds(limit)

	for {
		next := l.events.Peek()
		if next == nil {
			break
		}

		if limit > 0 && next.wakeup > end {
			l.time = end

			break
		}

		l.Step()

		n++
	}

	ml.Ln(l.name+": loop ran", n, "events, time now", l.time)

	return n
}
