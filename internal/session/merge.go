package session

import (
	"container/heap"

	"github.com/adatrace/ada-trace/internal/atf"
)

// MergedEvent is one event yielded by the cross-thread merge, tagged with
// the originating thread's index into SessionReader.Threads().
type MergedEvent struct {
	ThreadIndex int
	Event       atf.IndexEvent
}

type heapEntry struct {
	timestamp   uint64
	threadIndex int
	seq         uint32
}

// mergeHeap is a min-heap over (timestamp, threadIndex) pairs, ties broken
// by thread index for a stable, reproducible merge order.
type mergeHeap []heapEntry

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].timestamp != h[j].timestamp {
		return h[i].timestamp < h[j].timestamp
	}
	return h[i].threadIndex < h[j].threadIndex
}
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(heapEntry)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MergedIter produces every thread's events in globally non-decreasing
// timestamp order using an O(N log T) min-heap merge, T being the thread
// count. Ties are broken by thread index, fixed and deterministic.
func (s *SessionReader) MergedIter() []MergedEvent {
	h := make(mergeHeap, 0, len(s.threads))
	for idx, t := range s.threads {
		if e, ok := t.Index.Get(0); ok {
			h = append(h, heapEntry{timestamp: e.TimestampNs, threadIndex: idx, seq: 0})
		}
	}
	heap.Init(&h)

	out := make([]MergedEvent, 0, s.EventCount())
	for h.Len() > 0 {
		entry := heap.Pop(&h).(heapEntry)
		t := s.threads[entry.threadIndex]
		e, ok := t.Index.Get(entry.seq)
		if !ok {
			continue
		}
		out = append(out, MergedEvent{ThreadIndex: entry.threadIndex, Event: e})

		if next, ok := t.Index.Get(entry.seq + 1); ok {
			heap.Push(&h, heapEntry{timestamp: next.TimestampNs, threadIndex: entry.threadIndex, seq: entry.seq + 1})
		}
	}
	return out
}
