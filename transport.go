// -*- tab-width:2 -*-

package rpcq

// ResponseFunc receives every tagged response a transport decodes.
type ResponseFunc func(Response)

// Transport issues named calls to a node and delivers tagged
// responses later, in any order or not at all. Issue has no failure
// signal; a lost send looks exactly like a silent node.
type Transport interface {
	Issue(target, method string, args ...any)
	OnResponse(f ResponseFunc)
	Close() error
}
