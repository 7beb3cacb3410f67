// -*- tab-width:2 -*-

package rpcq

import (
	"time"

	"github.com/juju/errors"
)

// Simulation wires a virtual time loop, a link, a node running the
// demo firmware, and a dispatcher loaded with a scenario's calls.
type Simulation struct {
	Loop       *Loop
	Link       *SimLink
	Node       *Node
	Dispatcher *Dispatcher

	events <-chan Event
}

// NewSimulation builds the pieces for s. opts go to the dispatcher,
// after the scenario's own pre-delay action.
func NewSimulation(s *Scenario, opts ...Option) (*Simulation, error) {
	conf, err := s.LinkConf()
	if err != nil {
		return nil, errors.Trace(err)
	}

	loop := NewLoop("loop-" + s.Node)
	link := NewSimLink(conf, loop)
	node := NewNode(s.Node)
	DemoFirmware(node)
	link.Attach(node)

	opts = append([]Option{WithPreDelayAction(s.PreDelayAction(link))}, opts...)
	d := NewDispatcher(link, loop, opts...)

	if err := s.Enqueue(d, link); err != nil {
		return nil, errors.Trace(err)
	}

	return &Simulation{
		Loop:       loop,
		Link:       link,
		Node:       node,
		Dispatcher: d,
		events:     d.Events(eventChannelSize),
	}, nil
}

// Run starts the dispatcher and plays the loop out, up to limit of
// virtual time when limit > 0. It returns the events of the run.
func (sim *Simulation) Run(limit time.Duration) []Event {
	sim.Dispatcher.Start()
	sim.Loop.Run(limit)

	return sim.Events()
}

// Events returns the events seen so far and not yet returned.
func (sim *Simulation) Events() []Event {
	var out []Event

	for {
		select {
		case e := <-sim.events:
			out = append(out, e)
		default:
			return out
		}
	}
}
