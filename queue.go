// -*- tab-width:2 -*-

package rpcq

import (
	"github.com/emirpasic/gods/queues/linkedlistqueue"
	count "github.com/jayalane/go-counter"
	"github.com/juju/errors"
)

// ErrEmpty is returned by DequeueNext when no descriptors remain.
const ErrEmpty = errors.ConstError("call queue empty")

// Queue is the FIFO of descriptors waiting for dispatch. It is not
// safe for concurrent use; the dispatcher's event loop owns it.
type Queue struct {
	q *linkedlistqueue.Queue
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	Init()

	return &Queue{q: linkedlistqueue.New()}
}

// Enqueue validates d and appends it to the tail.
func (q *Queue) Enqueue(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		count.IncrSync("queue_rejected")

		return errors.Trace(err)
	}

	q.q.Enqueue(d)
	count.IncrSync("queue_enqueued")

	return nil
}

// DequeueNext removes and returns the head.
func (q *Queue) DequeueNext() (*Descriptor, error) {
	v, ok := q.q.Dequeue()
	if !ok {
		return nil, ErrEmpty
	}

	return v.(*Descriptor), nil //nolint:forcetypeassert
}

// Len is the number of queued descriptors.
func (q *Queue) Len() int {
	return q.q.Size()
}
