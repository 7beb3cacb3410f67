// -*- tab-width:2 -*-

package rpcq

// activeCall is the dispatcher's working state for the call in
// flight. It is replaced, never reused, when the dispatcher advances.
type activeCall struct {
	desc    *Descriptor
	attempt int         // attempts made so far, 0 on the first issue
	timer   TimerHandle // armed timeout, 0 for none
}

func (a *activeCall) tag() string {
	return a.desc.ExpectedTag
}

func (a *activeCall) attempts() int {
	return a.attempt + 1
}
