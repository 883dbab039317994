// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Timer heap for the event loop.

package concurrency

import (
	"container/heap"
	"time"

	"github.com/momentics/hioload-wait/api"
)

type timerEntry struct {
	id    api.TimerID
	tag   uint64
	when  time.Time
	index int
}

// taskHeap is a min-heap on (when, id); equal deadlines fire in arming order.
type taskHeap []*timerEntry

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].id < h[j].id
	}
	return h[i].when.Before(h[j].when)
}
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// timerQueue tracks armed timers by id so they can be disarmed in O(log n).
type timerQueue struct {
	heap   taskHeap
	byID   map[api.TimerID]*timerEntry
	nextID api.TimerID
}

func newTimerQueue() *timerQueue {
	return &timerQueue{byID: make(map[api.TimerID]*timerEntry)}
}

func (q *timerQueue) arm(when time.Time, tag uint64) api.TimerID {
	q.nextID++
	e := &timerEntry{id: q.nextID, tag: tag, when: when}
	heap.Push(&q.heap, e)
	q.byID[e.id] = e
	return e.id
}

func (q *timerQueue) disarm(id api.TimerID) bool {
	e, ok := q.byID[id]
	if !ok {
		return false
	}
	delete(q.byID, id)
	heap.Remove(&q.heap, e.index)
	return true
}

// next returns the earliest deadline.
func (q *timerQueue) next() (time.Time, bool) {
	if len(q.heap) == 0 {
		return time.Time{}, false
	}
	return q.heap[0].when, true
}

// popExpired removes and returns the earliest timer if it is due at now and was
// armed no later than limit. Timers armed while expiring wait for the next pass.
func (q *timerQueue) popExpired(now time.Time, limit api.TimerID) (*timerEntry, bool) {
	if len(q.heap) == 0 {
		return nil, false
	}
	e := q.heap[0]
	if e.when.After(now) || e.id > limit {
		return nil, false
	}
	heap.Pop(&q.heap)
	delete(q.byID, e.id)
	return e, true
}

func (q *timerQueue) len() int { return len(q.heap) }
