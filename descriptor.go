// -*- tab-width:2 -*-

package rpcq

import (
	"time"

	"github.com/juju/errors"
)

const (
	// DefaultRetries is the number of re-issues after the first attempt.
	DefaultRetries = 2
	// DefaultTimeout is how long each attempt waits for its response.
	DefaultTimeout = 3 * time.Second
)

// Descriptor is one queued call: what to invoke, which response tag
// satisfies it, and its retry budget.
type Descriptor struct {
	Name        string
	Invoke      func()
	ExpectedTag string // empty when no response is expected
	Retries     int
	Timeout     time.Duration
	PreDelay    time.Duration // zero for none
	OnDone      func(Result)
}

// CallOption adjusts a descriptor built by Dispatcher.Enqueue.
type CallOption func(*Descriptor)

// WithRetries sets the number of re-issues after the first attempt.
func WithRetries(n int) CallOption {
	return func(d *Descriptor) {
		d.Retries = n
	}
}

// WithTimeout sets the per attempt timeout.
func WithTimeout(t time.Duration) CallOption {
	return func(d *Descriptor) {
		d.Timeout = t
	}
}

// WithPreDelay runs the dispatcher's pre-delay action for t before
// the first attempt.
func WithPreDelay(t time.Duration) CallOption {
	return func(d *Descriptor) {
		d.PreDelay = t
	}
}

// WithOnDone registers a callback for the call's final result.
func WithOnDone(f func(Result)) CallOption {
	return func(d *Descriptor) {
		d.OnDone = f
	}
}

// NewDescriptor builds a descriptor with the default budget
// (2 retries, 3 second timeout) and applies opts.
func NewDescriptor(name string, invoke func(), expectedTag string, opts ...CallOption) *Descriptor {
	d := &Descriptor{
		Name:        name,
		Invoke:      invoke,
		ExpectedTag: expectedTag,
		Retries:     DefaultRetries,
		Timeout:     DefaultTimeout,
	}

	for _, o := range opts {
		o(d)
	}

	return d
}

// ExpectsResponse is true when the call waits for a tagged response.
func (d *Descriptor) ExpectsResponse() bool {
	return d.ExpectedTag != ""
}

// Validate rejects descriptors that cannot be dispatched.
func (d *Descriptor) Validate() error {
	switch {
	case d == nil:
		return errors.NotValidf("nil descriptor")
	case d.Invoke == nil:
		return errors.NotValidf("descriptor %q with nil invoke", d.Name)
	case d.Retries < 0:
		return errors.NotValidf("descriptor %q retries %d", d.Name, d.Retries)
	case d.Timeout < 0:
		return errors.NotValidf("descriptor %q timeout %v", d.Name, d.Timeout)
	case d.PreDelay < 0:
		return errors.NotValidf("descriptor %q pre-delay %v", d.Name, d.PreDelay)
	}

	return nil
}

// String is the name, or the tag when unnamed.
func (d *Descriptor) String() string {
	if d == nil {
		return "<nil call>"
	}

	if d.Name != "" {
		return d.Name
	}

	if d.ExpectedTag != "" {
		return d.ExpectedTag
	}

	return "call"
}
