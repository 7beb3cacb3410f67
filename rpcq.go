// -*- tab-width:2 -*-

// Package rpcq provides a queued RPC dispatcher for talking to a
// node over a lossy half-duplex link: one call in flight, a timeout
// per attempt, fixed retries, and responses correlated by tag.
// It also carries a discrete event simulation of the link and the
// node so dispatch runs can be played out in virtual time.
package rpcq

import (
	"sync"

	count "github.com/jayalane/go-counter"
	ll "github.com/jayalane/go-lll"
)

var (
	ml     *ll.Lll
	mlOnce sync.Once
)

const (
	eventChannelSize = 1_000
)

// Milliseconds is the internal virtual time type.
type Milliseconds float64

// Init must be called before any dispatch stuff
// it inits the logger and the counters. The constructors call it.
func Init() {
	mlOnce.Do(func() {
		ml = ll.Init("RPCQ", "none")
		count.InitCounters()
	})
}

// InitWithLogger is an init where you can
// pass in the go-lll logger.
func InitWithLogger(l *ll.Lll) {
	mlOnce.Do(func() {
		ml = l
		count.InitCounters()
	})
}
