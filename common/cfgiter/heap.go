/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

package cfgiter

import (
	"container/heap"
	"time"
)

// timeoutQueue is a container/heap.Interface ordering armed iterators by
// deadline, so the scheduler's event loop can learn (in O(1)) which
// iterator times out next and reset a single timer against it, rather
// than polling every open iterator on every tick.
type timeoutQueue []*Iterator

func (q timeoutQueue) Len() int { return len(q) }

func (q timeoutQueue) Less(i, j int) bool {
	return q[i].deadline.Before(q[j].deadline)
}

func (q timeoutQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].heapIndex = i
	q[j].heapIndex = j
}

func (q *timeoutQueue) Push(x interface{}) {
	it := x.(*Iterator)
	it.heapIndex = len(*q)
	*q = append(*q, it)
}

func (q *timeoutQueue) Pop() interface{} {
	old := *q
	n := len(old)
	it := old[n-1]
	it.heapIndex = -1
	*q = old[:n-1]
	return it
}

// TimeoutWatchdog tracks every iterator with an armed deadline and reports
// which one times out next, so its owner can drive a single timer instead
// of one per iterator.
type TimeoutWatchdog struct {
	q timeoutQueue
}

// NewTimeoutWatchdog creates an empty watchdog.
func NewTimeoutWatchdog() *TimeoutWatchdog {
	w := &TimeoutWatchdog{q: make(timeoutQueue, 0)}
	heap.Init(&w.q)
	return w
}

// Arm adds it to the watchdog, or repositions it if already present, using
// its currently-set Deadline.
func (w *TimeoutWatchdog) Arm(it *Iterator) {
	if it.heapIndex == -1 {
		heap.Push(&w.q, it)
		return
	}
	heap.Fix(&w.q, it.heapIndex)
}

// Disarm removes it from the watchdog; a no-op if it is not armed.
func (w *TimeoutWatchdog) Disarm(it *Iterator) {
	if it.heapIndex == -1 {
		return
	}
	heap.Remove(&w.q, it.heapIndex)
}

// Next returns the iterator with the soonest deadline, or nil if none are
// armed.
func (w *TimeoutWatchdog) Next() *Iterator {
	if len(w.q) == 0 {
		return nil
	}
	return w.q[0]
}

// ExpireDue terminates and disarms every iterator whose deadline is at or
// before now, returning them so the caller can also evict them from its
// own registry and fire any "iterator closed" notification.
func (w *TimeoutWatchdog) ExpireDue(now time.Time) []*Iterator {
	var due []*Iterator
	for len(w.q) > 0 && !w.q[0].deadline.After(now) {
		it := heap.Pop(&w.q).(*Iterator)
		it.Terminate()
		due = append(due, it)
	}
	return due
}
