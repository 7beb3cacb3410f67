// -*- tab-width:2 -*-
package rpcq

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()

	_, err := q.DequeueNext()
	assert.True(t, errors.Is(err, ErrEmpty))

	noop := func() {}
	a := NewDescriptor("a", noop, "a_response")
	b := NewDescriptor("b", noop, "")

	require.NoError(t, q.Enqueue(a))
	require.NoError(t, q.Enqueue(b))
	require.NoError(t, q.Enqueue(a)) // duplicates are independent entries
	assert.Equal(t, 3, q.Len())

	for _, want := range []*Descriptor{a, b, a} {
		got, err := q.DequeueNext()
		require.NoError(t, err)
		assert.Same(t, want, got)
	}

	_, err = q.DequeueNext()
	assert.Equal(t, ErrEmpty, err)
}

func TestDescriptorDefaults(t *testing.T) {
	d := NewDescriptor("", func() {}, "simple_response")

	assert.Equal(t, DefaultRetries, d.Retries)
	assert.Equal(t, DefaultTimeout, d.Timeout)
	assert.Zero(t, d.PreDelay)
	assert.True(t, d.ExpectsResponse())
	assert.Equal(t, "simple_response", d.String())
	assert.NoError(t, d.Validate())

	assert.Equal(t, "call", NewDescriptor("", func() {}, "").String())
}
