package scheduler

import (
	"slices"
	"sort"
)

// pendingQueue is a stable ordered multimap priority -> invocations.
//
// Invocations are kept sorted by ascending priority; an invocation is
// inserted after every invocation of equal priority, so ties keep arrival
// order and equal priorities never coalesce.
type pendingQueue struct {
	items   []Invocation
	nextSeq uint64
}

// push stamps inv with the next arrival number and inserts it.
func (q *pendingQueue) push(inv Invocation) {
	q.nextSeq++
	inv.seq = q.nextSeq

	// First index whose priority is strictly greater.
	idx := sort.Search(len(q.items), func(i int) bool {
		return q.items[i].priority > inv.priority
	})
	q.items = slices.Insert(q.items, idx, inv)
}

// snapshot returns the pending invocations in execution order.
func (q *pendingQueue) snapshot() []Invocation {
	return slices.Clone(q.items)
}

// remove drops exactly the given invocations, keeping anything pushed since
// they were snapshotted.
func (q *pendingQueue) remove(batch []Invocation) {
	if len(batch) == 0 {
		return
	}
	done := make(map[uint64]struct{}, len(batch))
	for _, inv := range batch {
		done[inv.seq] = struct{}{}
	}
	q.items = slices.DeleteFunc(q.items, func(inv Invocation) bool {
		_, ok := done[inv.seq]
		return ok
	})
}

func (q *pendingQueue) len() int {
	return len(q.items)
}
