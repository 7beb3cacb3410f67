// -*- tab-width:2 -*-

// Package rpcq provides a queued RPC dispatcher for talking to a
// node over a lossy half-duplex link.
package rpcq

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy decides whether a timed out attempt is re-issued and
// how long each attempt waits for its response.
type RetryPolicy interface {
	ShouldRetry(attempt, limit int) bool
	Timeout(d *Descriptor, attempt int) time.Duration
}

// FixedRetry is the default policy: retry while attempt < limit,
// waiting the descriptor's own timeout every time.
type FixedRetry struct{}

// ShouldRetry is true while retries remain.
func (FixedRetry) ShouldRetry(attempt, limit int) bool {
	return attempt < limit
}

// Timeout is the descriptor timeout, whatever the attempt.
func (FixedRetry) Timeout(d *Descriptor, _ int) time.Duration {
	return d.Timeout
}

// BackoffRetry keeps the fixed retry count but grows the wait
// exponentially from the descriptor timeout.
type BackoffRetry struct {
	BackoffFactor float64
	MaxDelay      time.Duration
	Jitter        float64 // 0.0 to 1.0, fraction of delay to randomize
	Rand          *rand.Rand
}

// DefaultBackoffRetry returns a sensible backoff policy.
func DefaultBackoffRetry() *BackoffRetry {
	return &BackoffRetry{
		BackoffFactor: 2.0,              //nolint:mnd
		MaxDelay:      30 * time.Second, //nolint:mnd
		Jitter:        0.1,              //nolint:mnd // 10% jitter
	}
}

// ShouldRetry is true while retries remain.
func (p *BackoffRetry) ShouldRetry(attempt, limit int) bool {
	return attempt < limit
}

// Timeout calculates the wait for a given attempt
// using exponential backoff with optional jitter.
func (p *BackoffRetry) Timeout(d *Descriptor, attempt int) time.Duration {
	delay := float64(d.Timeout) * math.Pow(p.BackoffFactor, float64(attempt))

	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.Jitter > 0 {
		jitterAmount := delay * p.Jitter
		delay += (p.float64()*2 - 1) * jitterAmount
	}

	return time.Duration(delay)
}

func (p *BackoffRetry) float64() float64 {
	if p.Rand != nil {
		return p.Rand.Float64()
	}

	return rand.Float64() //nolint:gosec
}
