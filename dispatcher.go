// -*- tab-width:2 -*-

package rpcq

import (
	"fmt"
	"time"

	count "github.com/jayalane/go-counter"
	"github.com/juju/errors"
)

const (
	// ErrDrained is returned when enqueueing on a drained dispatcher.
	ErrDrained = errors.ConstError("dispatcher drained")
	// ErrStarted is returned when registering handlers after Start.
	ErrStarted = errors.ConstError("dispatcher already started")
)

// State is the dispatcher's position in its state machine.
type State int

const (
	// StateIdle is before Start.
	StateIdle State = iota
	// StateIssuing is while a popped call is being sent.
	StateIssuing
	// StateAwaiting is a call in flight with its timeout armed.
	StateAwaiting
	// StateCompleted is a call finished, before the next is popped.
	StateCompleted
	// StateDrained is the queue empty and the transport closed.
	StateDrained
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateIssuing:
		return "issuing"
	case StateAwaiting:
		return "awaiting"
	case StateCompleted:
		return "completed"
	case StateDrained:
		return "drained"
	}

	return fmt.Sprintf("state(%d)", int(s))
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithName names the dispatcher in logs and counters.
func WithName(name string) Option {
	return func(d *Dispatcher) {
		d.name = name
	}
}

// WithRetryPolicy replaces the fixed timeout policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(d *Dispatcher) {
		d.policy = p
	}
}

// WithPreDelayAction sets what runs for a descriptor's PreDelay
// before its first attempt, e.g. telling the node to go deaf.
func WithPreDelayAction(f func(time.Duration)) Option {
	return func(d *Dispatcher) {
		d.preDelay = f
	}
}

// Dispatcher issues queued calls one at a time, correlating tagged
// responses and retrying on timeout. All of its methods except
// Events must run on the event loop that drives its Timer and
// Transport.
type Dispatcher struct {
	name      string
	queue     *Queue
	transport Transport
	timer     Timer
	policy    RetryPolicy
	preDelay  func(time.Duration)
	router    *Router
	events    *Broadcaster
	active    *activeCall
	state     State
	started   bool
	closeErr  error
	done      chan struct{}
}

// NewDispatcher wires a dispatcher to its transport and timer and
// registers its router as the transport's response callback.
func NewDispatcher(t Transport, tm Timer, opts ...Option) *Dispatcher {
	Init()

	d := &Dispatcher{
		name:      "dispatch",
		queue:     NewQueue(),
		transport: t,
		timer:     tm,
		policy:    FixedRetry{},
		events:    NewBroadcaster(),
		done:      make(chan struct{}),
	}

	for _, o := range opts {
		o(d)
	}

	d.router = newRouter(d)
	t.OnResponse(d.router.OnResponse)

	return d
}

// Router returns the response router.
func (d *Dispatcher) Router() *Router {
	return d.router
}

// Handle registers a handler for a response tag. See Router.Handle.
func (d *Dispatcher) Handle(tag string, h Handler) error {
	return d.router.Handle(tag, h)
}

// Events subscribes to the run's events.
func (d *Dispatcher) Events(size int) <-chan Event {
	return d.events.Subscribe(size)
}

// Done is closed once the dispatcher drains.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// State returns the current state.
func (d *Dispatcher) State() State {
	return d.state
}

// Active returns the tag and attempt of the call in flight.
func (d *Dispatcher) Active() (tag string, attempt int, ok bool) {
	if d.active == nil {
		return "", 0, false
	}

	return d.active.tag(), d.active.attempt, true
}

// Queued is the number of calls not yet popped.
func (d *Dispatcher) Queued() int {
	return d.queue.Len()
}

// CloseErr is the error, if any, from closing the transport at drain.
func (d *Dispatcher) CloseErr() error {
	return d.closeErr
}

// Enqueue queues a call in the manner of the default budget: 2
// retries with a 3 second timeout unless opts say otherwise. An
// empty expectedTag means no response is expected.
func (d *Dispatcher) Enqueue(name string, invoke func(), expectedTag string, opts ...CallOption) error {
	return d.Push(NewDescriptor(name, invoke, expectedTag, opts...))
}

// Push queues a prepared descriptor.
func (d *Dispatcher) Push(desc *Descriptor) error {
	if d.state == StateDrained {
		return errors.Annotatef(ErrDrained, "enqueue %s", desc)
	}

	if err := d.queue.Enqueue(desc); err != nil {
		return errors.Annotatef(err, "%s", d.name)
	}

	ml.La(d.name+": queued", desc, "len", d.queue.Len())

	return nil
}

// Start kicks off the first call. Calling it again does nothing.
func (d *Dispatcher) Start() {
	if d.started {
		return
	}

	d.started = true
	ml.Ls(d.name+": starting with", d.queue.Len(), "calls")
	d.advance()
}

// advance pops and issues the next call, or drains. Calls that expect
// no response finish inline and the loop moves on.
func (d *Dispatcher) advance() {
	for {
		if d.state == StateDrained {
			ml.La(d.name + ": advance while drained")

			return
		}

		d.cancelTimer()

		desc, err := d.queue.DequeueNext()
		if errors.Is(err, ErrEmpty) {
			d.drain()

			return
		}

		a := &activeCall{desc: desc}
		d.active = a
		d.state = StateIssuing

		if desc.PreDelay > 0 {
			d.runPreDelay(desc)
		}

		if !desc.ExpectsResponse() {
			d.issue(Issued)
			d.finish(a, Result{Call: desc.String(), Outcome: NoReply, Attempts: 1}, Skipped, nil)

			continue
		}

		d.arm()
		d.state = StateAwaiting
		d.issue(Issued)

		return
	}
}

func (d *Dispatcher) runPreDelay(desc *Descriptor) {
	ml.Ln(d.name+": pre-delay", desc.PreDelay, "before", desc)
	count.IncrSyncSuffix("dispatch_pre_delay", desc.String())

	if d.preDelay != nil {
		d.preDelay(desc.PreDelay)
	}
}

// issue sends the active call. Nothing of the active call may be
// touched after Invoke: a synchronous transport can complete it.
func (d *Dispatcher) issue(kind EventKind) {
	a := d.active
	count.IncrSyncSuffix("dispatch_issue", a.desc.String())
	ml.Ln(d.name+": sending", a.desc, "attempt", a.attempt)
	d.emit(Event{Kind: kind, Call: a.desc.String(), Tag: a.tag(), Attempt: a.attempt})
	a.desc.Invoke()
}

// arm starts the timeout for the active call's current attempt.
func (d *Dispatcher) arm() {
	a := d.active
	attempt := a.attempt
	timeout := d.policy.Timeout(a.desc, attempt)

	a.timer = d.timer.Schedule(timeout, func() {
		d.onTimeout(a, attempt)
	})
}

func (d *Dispatcher) cancelTimer() {
	if d.active == nil || d.active.timer == 0 {
		return
	}

	d.timer.Cancel(d.active.timer)
	d.active.timer = 0
}

func (d *Dispatcher) onTimeout(a *activeCall, attempt int) {
	if d.active != a || a.attempt != attempt || d.state != StateAwaiting {
		count.IncrSync("dispatch_timer_stale")
		ml.La(d.name+": ignoring old timeout for", a.desc, attempt)

		return
	}

	a.timer = 0

	if d.policy.ShouldRetry(a.attempt, a.desc.Retries) {
		a.attempt++
		count.IncrSyncSuffix("dispatch_retry", a.desc.String())
		d.arm()
		d.issue(Retry)

		return
	}

	ml.Ln(d.name+": no response received for", a.desc, "after", a.attempts(), "attempts")
	count.IncrSyncSuffix("dispatch_dropped", a.desc.String())
	d.finish(a, Result{Call: a.desc.String(), Outcome: Dropped, Attempts: a.attempts()}, Exhausted, nil)
	d.advance()
}

// awaiting is true when tag is the response the active call waits on.
func (d *Dispatcher) awaiting(tag string) bool {
	return d.state == StateAwaiting && d.active != nil && d.active.tag() == tag
}

// complete finishes the active call with resp and moves on.
func (d *Dispatcher) complete(resp Response) {
	a := d.active
	count.IncrSyncSuffix("dispatch_completed", a.desc.String())
	d.finish(a, Result{
		Call:     a.desc.String(),
		Outcome:  Completed,
		Attempts: a.attempts(),
		Payload:  resp.Payload,
	}, Success, resp.Payload)
	d.advance()
}

func (d *Dispatcher) finish(a *activeCall, res Result, kind EventKind, payload []any) {
	d.cancelTimer()
	d.state = StateCompleted
	d.active = nil

	count.MarkDistribution("dispatch_attempts", float64(res.Attempts))
	ml.Ls(d.name+":", a.desc, res.Outcome, "after", res.Attempts, "attempts")
	d.emit(Event{Kind: kind, Call: res.Call, Tag: a.tag(), Attempt: a.attempt, Payload: payload})

	if a.desc.OnDone != nil {
		a.desc.OnDone(res)
	}
}

func (d *Dispatcher) drain() {
	d.state = StateDrained
	d.active = nil

	ml.Ls(d.name + ": all scheduled calls completed")

	if err := d.transport.Close(); err != nil {
		d.closeErr = errors.Annotatef(err, "%s: closing transport", d.name)
		ml.Ls(d.closeErr.Error())
	}

	count.IncrSync("dispatch_drained")
	d.emit(Event{Kind: Drained})
	close(d.done)
}

func (d *Dispatcher) emit(e Event) {
	d.events.Broadcast(e)
}
