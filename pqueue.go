// -*- tab-width:2 -*-

package rpcq

// An Item is a scheduled event we manage in a priority queue.
type Item struct {
	fn     func()
	wakeup Milliseconds // when the event is due
	seq    uint64       // schedule order, breaks ties at the same wakeup
	handle TimerHandle
	// The index is needed by Fix/Remove and is maintained by the heap.Interface methods.
	index int // The index of the item in the heap.
}

// A PQueue implements heap.Interface and holds Items, earliest first.
type PQueue []*Item

func (pq PQueue) Len() int { return len(pq) }

func (pq PQueue) Less(i, j int) bool {
	if pq[i].wakeup == pq[j].wakeup {
		return pq[i].seq < pq[j].seq
	}

	return pq[i].wakeup < pq[j].wakeup
}

func (pq PQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

// Push adds a value to the pqueue - called by
// heap.Interface
func (pq *PQueue) Push(x any) {
	n := len(*pq)
	item := x.(*Item) //nolint:forcetypeassert
	item.index = n
	*pq = append(*pq, item)
}

// Pop removes a value from the pqueue -
// called by heap.Interface
func (pq *PQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*pq = old[0 : n-1]

	return item
}

// Peek returns the earliest item without removing it, or nil.
func (pq PQueue) Peek() *Item {
	if len(pq) == 0 {
		return nil
	}

	return pq[0]
}
