// -*- tab-width:2 -*-

package rpcq

import (
	"math/rand"
	"time"

	count "github.com/jayalane/go-counter"
)

const (
	defaultLatencyMinMs = 20.0
	defaultLatencyMaxMs = 60.0
)

// LinkConf configures a simulated link.
type LinkConf struct {
	Name     string
	Latency  ModelCdf // one way, in milliseconds
	LossRate float64  // 0.0 to 1.0, per message
	Seed     int64
}

// pipe is one direction of the link. Messages come out in the order
// they went in; each scheduled arrival delivers the head.
type pipe struct {
	name string
	q    []func()
}

// SimLink is a Transport over simulated half-duplex radio: calls go
// to attached nodes, responses come back, both after a sampled
// latency and subject to loss.
type SimLink struct {
	name       string
	timer      Timer
	latency    ModelCdf
	loss       float64
	rng        *rand.Rand
	nodes      map[string]*Node
	onResponse ResponseFunc
	down       pipe
	up         pipe
	nextID     uint64
	inflight   map[uint64]TimerHandle
	closed     bool
}

// NewSimLink builds a link scheduling on timer.
func NewSimLink(conf *LinkConf, timer Timer) *SimLink {
	Init()

	l := &SimLink{
		name:     conf.Name,
		timer:    timer,
		latency:  conf.Latency,
		loss:     conf.LossRate,
		rng:      rand.New(rand.NewSource(conf.Seed)), //nolint:gosec
		nodes:    make(map[string]*Node),
		inflight: make(map[uint64]TimerHandle),
	}

	if l.name == "" {
		l.name = "link"
	}

	if l.latency == nil {
		l.latency = UniformCDF(defaultLatencyMinMs, defaultLatencyMaxMs)
	}

	l.down.name = l.name + "-down"
	l.up.name = l.name + "-up"

	return l
}

// Attach puts a node on the link.
func (l *SimLink) Attach(n *Node) {
	n.link = l
	n.timer = l.timer
	l.nodes[n.addr] = n
}

// OnResponse registers the inbound callback.
func (l *SimLink) OnResponse(f ResponseFunc) {
	l.onResponse = f
}

// Issue sends method(args...) to target. Unknown targets and lost
// messages vanish silently.
func (l *SimLink) Issue(target, method string, args ...any) {
	if l.closed {
		count.IncrSyncSuffix("link_closed_drop", l.name)

		return
	}

	n, ok := l.nodes[target]
	if !ok {
		count.IncrSyncSuffix("link_unknown_target", l.name)
		ml.Ln(l.name+": no node at", target, "for", method)

		return
	}

	if l.lost() {
		ml.La(l.name+": lost call", method, "to", target)

		return
	}

	ml.La(l.name+": sending", method, args, "to", target)
	l.send(&l.down, func() {
		n.receive(method, args)
	})
}

// respond carries a node's tagged response back to the callback.
func (l *SimLink) respond(from, tag string, payload []any) {
	if l.closed {
		count.IncrSyncSuffix("link_closed_drop", l.name)

		return
	}

	if l.lost() {
		ml.La(l.name+": lost response", tag, "from", from)

		return
	}

	resp := Response{From: from, Tag: tag, Payload: payload}

	l.send(&l.up, func() {
		if l.onResponse != nil {
			l.onResponse(resp)
		}
	})
}

// Close stops all delivery and cancels messages in flight. Closing
// twice is harmless.
func (l *SimLink) Close() error {
	if l.closed {
		return nil
	}

	l.closed = true

	for id, h := range l.inflight {
		l.timer.Cancel(h)
		delete(l.inflight, id)
	}

	l.down.q = nil
	l.up.q = nil

	count.IncrSyncSuffix("link_closed", l.name)
	ml.Ls(l.name + ": closed")

	return nil
}

// Closed reports whether Close has been called.
func (l *SimLink) Closed() bool {
	return l.closed
}

// InFlight is the number of messages not yet delivered.
func (l *SimLink) InFlight() int {
	return len(l.inflight)
}

func (l *SimLink) lost() bool {
	if l.loss <= 0 || l.rng.Float64() >= l.loss {
		return false
	}

	count.IncrSyncSuffix("link_lost", l.name)

	return true
}

func (l *SimLink) send(p *pipe, deliver func()) {
	p.q = append(p.q, deliver)

	ms := l.latency.Sample(l.rng)
	count.MarkDistribution(p.name+"_latency_ms", ms)

	l.nextID++
	id := l.nextID
	l.inflight[id] = l.timer.Schedule(time.Duration(ms*float64(time.Millisecond)), func() {
		delete(l.inflight, id)

		if l.closed || len(p.q) == 0 {
			return
		}

		next := p.q[0]
		p.q[0] = nil
		p.q = p.q[1:]

		count.IncrSyncSuffix("link_delivered", p.name)
		next()
	})
}
