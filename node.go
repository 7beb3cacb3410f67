// -*- tab-width:2 -*-

package rpcq

import (
	"time"

	count "github.com/jayalane/go-counter"
)

// callbackMethod is the built-in that runs a function and sends its
// return value back under a caller chosen tag.
const callbackMethod = "callback"

// NodeFunc is a function in a simulated node's script. Its return
// value only goes anywhere when it was run through callback.
type NodeFunc func(n *Node, args ...any) any

// Node is a simulated embedded node: a black box that may answer,
// answer with the wrong tag, or stay silent while its radio is off.
type Node struct {
	addr     string
	link     *SimLink
	timer    Timer
	funcs    map[string]NodeFunc
	rxOff    bool
	rxTimer  TimerHandle
	received int
	ignored  int
}

// NewNode makes a node with an empty script; attach it to a link
// before use.
func NewNode(addr string) *Node {
	Init()

	return &Node{
		addr:  addr,
		funcs: make(map[string]NodeFunc),
	}
}

// Addr is the node's address on the link.
func (n *Node) Addr() string {
	return n.addr
}

// Register adds a function to the node's script.
func (n *Node) Register(name string, f NodeFunc) {
	n.funcs[name] = f
}

// Reply multicasts a tagged response from the node.
func (n *Node) Reply(tag string, payload ...any) {
	count.IncrSyncSuffix("node_reply", n.addr)
	ml.La(n.addr+": replying", tag, payload)
	n.link.respond(n.addr, tag, payload)
}

// RadioOff turns the receiver off for d; calls arriving meanwhile
// are lost. A new outage replaces the old one.
func (n *Node) RadioOff(d time.Duration) {
	if n.rxTimer != 0 {
		n.timer.Cancel(n.rxTimer)
	}

	n.rxOff = true
	count.IncrSyncSuffix("node_outage", n.addr)
	ml.Ln(n.addr+": radio off for", d)

	n.rxTimer = n.timer.Schedule(d, func() {
		n.rxOff = false
		n.rxTimer = 0
		ml.Ln(n.addr + ": radio back on")
	})
}

// Listening reports whether the receiver is on.
func (n *Node) Listening() bool {
	return !n.rxOff
}

// Received is the number of calls the node ran.
func (n *Node) Received() int {
	return n.received
}

// Ignored is the number of calls lost to outages or unknown names.
func (n *Node) Ignored() int {
	return n.ignored
}

func (n *Node) receive(method string, args []any) {
	if n.rxOff {
		n.ignored++
		count.IncrSyncSuffix("node_rx_off_drop", n.addr)
		ml.La(n.addr+": radio off, missed", method)

		return
	}

	if method == callbackMethod {
		n.callback(args)

		return
	}

	n.run(method, args)
}

func (n *Node) run(method string, args []any) (any, bool) {
	f, ok := n.funcs[method]
	if !ok {
		n.ignored++
		count.IncrSyncSuffix("node_unknown_func", n.addr)
		ml.Ln(n.addr+": no function", method)

		return nil, false
	}

	n.received++
	count.IncrSyncSuffix("node_call", method)

	return f(n, args...), true
}

// callback runs args[1](args[2:]...) and replies under tag args[0].
func (n *Node) callback(args []any) {
	if len(args) < 2 { //nolint:mnd
		n.ignored++
		ml.Ln(n.addr+": short callback", args)

		return
	}

	tag, ok1 := args[0].(string)
	method, ok2 := args[1].(string)

	if !ok1 || !ok2 {
		n.ignored++
		ml.Ln(n.addr+": bad callback", args)

		return
	}

	v, ok := n.run(method, args[2:])
	if !ok {
		return
	}

	n.Reply(tag, v)
}
