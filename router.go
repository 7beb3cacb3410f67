// -*- tab-width:2 -*-

package rpcq

import (
	count "github.com/jayalane/go-counter"
	"github.com/juju/errors"
)

// Handler consumes the payload of a matching response.
type Handler func(Response)

// Router maps response tags to handlers and asks the dispatcher
// whether each response is the one the active call waits for. It
// never touches the queue or the active call itself.
type Router struct {
	d        *Dispatcher
	handlers map[string]Handler
}

func newRouter(d *Dispatcher) *Router {
	return &Router{
		d:        d,
		handlers: make(map[string]Handler),
	}
}

// Handle registers h for tag. Registration is static: it must
// happen before the dispatcher starts.
func (r *Router) Handle(tag string, h Handler) error {
	if r.d.started {
		return errors.Annotatef(ErrStarted, "registering %q", tag)
	}

	if tag == "" {
		return errors.NotValidf("empty response tag")
	}

	r.handlers[tag] = h

	return nil
}

// OnResponse is the transport's inbound callback. It is safe in any
// dispatcher state; responses that are not for the active call are
// logged and dropped.
func (r *Router) OnResponse(resp Response) {
	count.IncrSyncSuffix("router_response", resp.Tag)

	if !r.d.awaiting(resp.Tag) {
		r.stale(resp)

		return
	}

	r.d.cancelTimer()

	if h, ok := r.handlers[resp.Tag]; ok && h != nil {
		h(resp)
	} else {
		ml.Ln("Response", resp.Tag, resp.Payload)
	}

	r.d.complete(resp)
}

func (r *Router) stale(resp Response) {
	call := ""
	if r.d.active != nil {
		call = r.d.active.desc.String()
	}

	ml.Ln("Ignoring response:", resp.Tag, "while", r.d.state, call)
	count.IncrSyncSuffix("dispatch_stale", resp.Tag)
	r.d.emit(Event{Kind: Stale, Call: call, Tag: resp.Tag, Payload: resp.Payload})
}
