// -*- tab-width:2 -*-

package rpcq

import (
	"context"
	"sync"
	"time"

	count "github.com/jayalane/go-counter"
	"github.com/juju/clock"
	"github.com/juju/errors"
)

// ClockLoop is the wall clock event loop. Timers come from a
// clock.Clock but their callbacks, and anything Posted, run one at a
// time on the goroutine inside Run.
type ClockLoop struct {
	name   string
	clk    clock.Clock
	posts  chan func()
	mu     sync.Mutex
	next   TimerHandle
	timers map[TimerHandle]clock.Timer
}

// NewClockLoop returns a loop on clk, e.g. clock.WallClock.
func NewClockLoop(name string, clk clock.Clock) *ClockLoop {
	Init()

	return &ClockLoop{
		name:   name,
		clk:    clk,
		posts:  make(chan func(), eventChannelSize),
		timers: make(map[TimerHandle]clock.Timer),
	}
}

// Schedule runs f on the loop after d.
func (c *ClockLoop) Schedule(d time.Duration, f func()) TimerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	h := c.next
	c.timers[h] = c.clk.AfterFunc(d, func() {
		c.Post(func() {
			c.fire(h, f)
		})
	})

	return h
}

// Cancel stops a timer. A timer that already fired but whose callback
// has not run yet is also suppressed.
func (c *ClockLoop) Cancel(h TimerHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.timers[h]
	if !ok {
		return
	}

	t.Stop()
	delete(c.timers, h)
	count.IncrSyncSuffix("loop_cancel", c.name)
}

// Pending is the number of live timers.
func (c *ClockLoop) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.timers)
}

// Post queues f to run on the loop. It is safe from any goroutine.
func (c *ClockLoop) Post(f func()) {
	c.posts <- f
}

// Run processes events until done is closed or ctx ends.
func (c *ClockLoop) Run(ctx context.Context, done <-chan struct{}) error {
	ml.Ls(c.name + ": clock loop running")

	for {
		select {
		case <-ctx.Done():
			return errors.Annotatef(ctx.Err(), "%s", c.name)
		case <-done:
			ml.Ls(c.name + ": clock loop done")

			return nil
		case f := <-c.posts:
			count.IncrSyncSuffix("loop_event", c.name)
			f()
		}
	}
}

func (c *ClockLoop) fire(h TimerHandle, f func()) {
	c.mu.Lock()
	_, ok := c.timers[h]
	delete(c.timers, h)
	c.mu.Unlock()

	if !ok {
		ml.La(c.name+": timer", h, "cancelled before it ran")

		return
	}

	f()
}
