// -*- tab-width:2 -*-
package rpcq

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPQueue creates a PQueue with some items, removes one, and
// then takes the rest out in wakeup order.
func TestPQueue(t *testing.T) {
	pq := PQueue{}
	heap.Init(&pq)

	wakeups := []Milliseconds{30, 10, 20, 10, 5}
	items := make([]*Item, len(wakeups))

	for i, w := range wakeups {
		items[i] = &Item{wakeup: w, seq: uint64(i), handle: TimerHandle(i + 1)}
		heap.Push(&pq, items[i])
	}

	assert.Equal(t, TimerHandle(5), pq.Peek().handle)

	heap.Remove(&pq, items[2].index)

	var got []TimerHandle

	for pq.Len() > 0 {
		item, ok := heap.Pop(&pq).(*Item)
		if !ok {
			panic("type conversion failed in test")
		}

		got = append(got, item.handle)
	}

	// equal wakeups come out in schedule order
	assert.Equal(t, []TimerHandle{5, 2, 4, 1}, got)
	assert.Nil(t, pq.Peek())
}
