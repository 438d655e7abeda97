// Package event implements the time-ordered event queue and the kernel
// dispatch loop that drives every simulated process from a single
// cooperative thread.
package event

import (
	"container/heap"

	"github.com/asyncvlsi/actsim/simtime"
)

// OwnerTag distinguishes the heterogeneous objects an Event can target,
// replacing the virtual-dispatch hierarchy of the original simulator
// with a tagged variant the kernel switches on.
type OwnerTag int

const (
	OwnerChp OwnerTag = iota
	OwnerPrs
	OwnerMonitor
	OwnerExternal
)

// Owner is a handle uniquely identifying the object that should receive
// an Event's callback.
type Owner struct {
	Tag OwnerTag
	// Index identifies the owner within its tag (the chp.Process index
	// for OwnerChp, the driven Bool slot's offset for OwnerPrs);
	// External owners ignore it.
	Index int
}

// Kind distinguishes the reason a given Event was scheduled.
type Kind int

const (
	KindPrsUpdate Kind = iota
	KindChpResume
	KindChannelComplete
	KindMonitorAlarm
)

// Event is a single scheduled wakeup. Handle, once assigned by push, is
// stable for the lifetime of the event and is how Cancel finds it again.
type Event struct {
	Deadline simtime.Time
	Tiebreak uint64
	Owner    Owner
	Kind     Kind
	Payload  any

	handle    int
	cancelled bool
	heapIndex int
}

func (e *Event) Handle() int { return e.handle }

// eventHeap is the container/heap backing store, ordered by
// (Deadline, Tiebreak) exactly as required by the kernel's ordering
// guarantees.
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	c := h[i].Deadline.Cmp(h[j].Deadline)
	if c != 0 {
		return c < 0
	}
	return h[i].Tiebreak < h[j].Tiebreak
}
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}
func (h *eventHeap) Push(x any) {
	e := x.(*Event)
	e.heapIndex = len(*h)
	*h = append(*h, e)
}
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Queue is a min-heap of Events ordered lexicographically by
// (Deadline, Tiebreak). Cancellation is a lazy tombstone: a cancelled
// Event stays in the heap until Pop or PeekTime reaches it and discards
// it, matching the "best-effort" cancellation the spec allows.
type Queue struct {
	h          eventHeap
	nextTie    uint64
	nextHandle int
	byHandle   map[int]*Event
}

func NewQueue() *Queue {
	return &Queue{byHandle: make(map[int]*Event)}
}

// Push inserts ev, assigning it a fresh monotonic Tiebreak and a stable
// Handle, and returns that handle.
func (q *Queue) Push(ev *Event) int {
	q.nextTie++
	ev.Tiebreak = q.nextTie
	q.nextHandle++
	ev.handle = q.nextHandle
	heap.Push(&q.h, ev)
	q.byHandle[ev.handle] = ev
	return ev.handle
}

// Pop removes and returns the earliest non-cancelled Event, or nil if the
// queue is empty.
func (q *Queue) Pop() *Event {
	for q.h.Len() > 0 {
		ev := heap.Pop(&q.h).(*Event)
		delete(q.byHandle, ev.handle)
		if ev.cancelled {
			continue
		}
		return ev
	}
	return nil
}

// PeekTime returns the deadline of the earliest non-cancelled event and
// true, or false if the queue is empty. It has to pop and re-push past
// tombstones, since they are only purged lazily.
func (q *Queue) PeekTime() (simtime.Time, bool) {
	for q.h.Len() > 0 {
		ev := q.h[0]
		if !ev.cancelled {
			return ev.Deadline, true
		}
		heap.Pop(&q.h)
		delete(q.byHandle, ev.handle)
	}
	return simtime.Time{}, false
}

// Len reports the number of events still queued, cancelled or not.
func (q *Queue) Len() int { return q.h.Len() }

// Cancel marks the event with the given handle as dead. It is a
// best-effort operation: an event already popped cannot be cancelled,
// and Cancel reports false in that case.
func (q *Queue) Cancel(handle int) bool {
	ev, ok := q.byHandle[handle]
	if !ok {
		return false
	}
	ev.cancelled = true
	return true
}
