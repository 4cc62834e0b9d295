// Package scheduler implements the Event Scheduler (C3, §4.2): a
// min-heap of domain firings keyed by absolute time, ties broken by
// EventID. Cancellation uses lazy tombstones in the heap rather than an
// O(N) removal, validated by EventID at pop time (§9 design note) — the
// same container/heap shape the teacher's A* planner uses for its open
// set.
package scheduler

import (
	"container/heap"

	"github.com/pthm-cable/sgfrd/ids"
)

type item struct {
	eid      ids.EventID
	domainID ids.DomainID
	fireTime float64
	index    int
}

type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].fireTime != h[j].fireTime {
		return h[i].fireTime < h[j].fireTime
	}
	return h[i].eid < h[j].eid
}

func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap) Push(x interface{}) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Scheduler is the Event Scheduler (C3).
type Scheduler struct {
	heap    itemHeap
	live    map[ids.EventID]*item
	counter ids.Counter
}

func New() *Scheduler {
	return &Scheduler{live: make(map[ids.EventID]*item)}
}

// Add schedules domainID to fire at absolute time t and returns the
// fresh EventID.
func (s *Scheduler) Add(domainID ids.DomainID, t float64) ids.EventID {
	eid := ids.EventID(s.counter.Next())
	it := &item{eid: eid, domainID: domainID, fireTime: t}
	heap.Push(&s.heap, it)
	s.live[eid] = it
	return eid
}

// Remove cancels eid. Idempotent: a second call on an already-removed
// (or unknown) EventID is a no-op, and the EventID is never reused.
func (s *Scheduler) Remove(eid ids.EventID) {
	delete(s.live, eid)
}

// PopNext returns the earliest still-live event. Tombstoned heap entries
// (cancelled via Remove) are skipped lazily. ok is false if no live
// event remains.
func (s *Scheduler) PopNext() (eid ids.EventID, domainID ids.DomainID, t float64, ok bool) {
	for s.heap.Len() > 0 {
		it := heap.Pop(&s.heap).(*item)
		if _, live := s.live[it.eid]; !live {
			continue // tombstoned: was cancelled after being pushed
		}
		delete(s.live, it.eid)
		return it.eid, it.domainID, it.fireTime, true
	}
	return 0, 0, 0, false
}

// PeekTime returns the fire time of the next live event without popping
// it. ok is false if the scheduler is empty.
func (s *Scheduler) PeekTime() (float64, bool) {
	for s.heap.Len() > 0 {
		it := s.heap[0]
		if _, live := s.live[it.eid]; !live {
			heap.Pop(&s.heap)
			continue
		}
		return it.fireTime, true
	}
	return 0, false
}

// Len reports the number of live (non-tombstoned) events.
func (s *Scheduler) Len() int { return len(s.live) }
