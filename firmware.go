// -*- tab-width:2 -*-

package rpcq

import (
	"time"
)

// Demo tags and methods understood by DemoFirmware.
const (
	TagSimple      = "simple_response"
	TagExplicit    = "explicit_response"
	TagWrong       = "the_wrong_response"
	TagDelayOne    = "delay_response_one"
	TagDelayTwo    = "delay_response_two"
	TagDropped     = "dropped_response"
	MethodOutage   = "simulate_outage"
	MethodReset    = "reset_counter"
	MethodExplicit = "explicit_call"
)

// explicitWrongAnswers is how many times explicit_call answers with
// the wrong tag before the right one.
const explicitWrongAnswers = 2

// DemoFirmware loads the demo script onto n.
func DemoFirmware(n *Node) {
	resp := 0

	n.Register(MethodOutage, func(n *Node, args ...any) any {
		n.RadioOff(durationArg(args))

		return nil
	})
	n.Register("simple_call", func(_ *Node, _ ...any) any {
		return "Callback Returned!"
	})
	n.Register(MethodExplicit, func(n *Node, _ ...any) any {
		if resp == explicitWrongAnswers {
			n.Reply(TagExplicit, "Mcast sent from explicit.")
		} else {
			resp++
			n.Reply(TagWrong, "Mcast sent from wrong.")
		}

		return nil
	})
	n.Register(MethodReset, func(_ *Node, _ ...any) any {
		resp = 0

		return nil
	})
	n.Register("delayed_call", func(_ *Node, _ ...any) any {
		return "I should have been delayed."
	})
	n.Register("delay_call_one", func(_ *Node, _ ...any) any {
		return "There are built in retries and timeouts!"
	})
	n.Register("delay_call_two", func(_ *Node, _ ...any) any {
		return "Retries and timeouts can be set manually, too!"
	})
	n.Register("dropped_call", func(_ *Node, _ ...any) any {
		return "You should never see this."
	})
}

// durationArg reads an outage length: a time.Duration, or a number
// of seconds.
func durationArg(args []any) time.Duration {
	if len(args) == 0 {
		return 0
	}

	switch v := args[0].(type) {
	case time.Duration:
		return v
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	}

	return 0
}
