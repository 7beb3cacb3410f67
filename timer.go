// -*- tab-width:2 -*-

package rpcq

import (
	"time"
)

// TimerHandle identifies a scheduled callback. Zero means no timer.
type TimerHandle uint64

// Timer is the scheduling primitive the dispatcher suspends on. Both
// callbacks and cancellation run on the caller's event loop; f is never
// run after Cancel returns for its handle.
type Timer interface {
	Schedule(d time.Duration, f func()) TimerHandle
	Cancel(h TimerHandle)
}

// toMilliseconds converts a duration into virtual time.
func toMilliseconds(d time.Duration) Milliseconds {
	return Milliseconds(float64(d) / float64(time.Millisecond))
}

// toDuration converts virtual time into a duration.
func toDuration(ms Milliseconds) time.Duration {
	return time.Duration(float64(ms) * float64(time.Millisecond))
}
