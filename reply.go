// -*- tab-width:2 -*-

package rpcq

import (
	"fmt"
)

// Response is a tagged message coming back from a node.
type Response struct {
	From    string
	Tag     string
	Payload []any
}

// Outcome is how a dispatched call ended.
type Outcome int

const (
	// Completed means the expected response arrived.
	Completed Outcome = iota
	// Dropped means retries ran out without the expected response.
	Dropped
	// NoReply means the call expected no response.
	NoReply
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Dropped:
		return "dropped"
	case NoReply:
		return "no-reply"
	}

	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is the final word on one descriptor. Payload is only set
// for Completed.
type Result struct {
	Call     string
	Outcome  Outcome
	Attempts int
	Payload  []any
}
