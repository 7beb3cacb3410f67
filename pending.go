// -*- tab-width:2 -*-

package rpcq

import (
	"github.com/juju/errors"
)

// Pending is the future side of a queued call.
type Pending struct {
	done chan Result
}

// Done yields the call's Result once.
func (p *Pending) Done() <-chan Result {
	return p.done
}

// Call queues a call like Enqueue and returns a Pending that resolves
// when it completes, drops, or finishes without a reply. A dropped
// call resolves with Outcome Dropped, never an empty success.
func (d *Dispatcher) Call(name string, invoke func(), expectedTag string, opts ...CallOption) (*Pending, error) {
	desc := NewDescriptor(name, invoke, expectedTag, opts...)
	p := &Pending{done: make(chan Result, 1)}

	prev := desc.OnDone
	desc.OnDone = func(r Result) {
		if prev != nil {
			prev(r)
		}

		p.done <- r
	}

	if err := d.Push(desc); err != nil {
		return nil, errors.Trace(err)
	}

	return p, nil
}
