package chp

import "github.com/asyncvlsi/actsim/state"

// WaitKind distinguishes why a Thread is not currently runnable.
type WaitKind int

const (
	WaitNone WaitKind = iota
	WaitGuard
	WaitSend
	WaitRecv
	WaitJoin
)

func (w WaitKind) String() string {
	switch w {
	case WaitNone:
		return "none"
	case WaitGuard:
		return "guard"
	case WaitSend:
		return "send"
	case WaitRecv:
		return "recv"
	case WaitJoin:
		return "join"
	}
	return "unknown"
}

// fanin records a subscription a blocked thread registered, so it
// can be torn down cleanly once the thread is re-woken.
type fanin struct {
	ref    state.Ref
	handle state.Handle
}

// frame is one level of a Thread's explicit control stack: the
// statements remaining at this nesting level and a cursor into them.
// This is the "{pc, env}" record the design notes require in place of
// a captured native call stack or goroutine.
type frame struct {
	seq []*Node
	idx int
}

// joinBarrier is shared by every child thread spawned from one NPar
// node; the last child to finish reactivates resume.
type joinBarrier struct {
	remaining int
	resume    *Thread
}

// Thread is one live control thread of a ChpProcessInstance: either the
// process's single initial thread, or one spawned by an NPar node.
type Thread struct {
	ID     int
	Frames []frame

	Wait    WaitKind
	fanins  []fanin
	barrier *joinBarrier

	Chan state.Ref // channel a WaitSend/WaitRecv thread is blocked on

	// Steps counts every node this thread has stepped through, the
	// metering hook a future energy/leakage command would read; nothing
	// in this package interprets it.
	Steps uint64
}

func (t *Thread) finished() bool { return len(t.Frames) == 0 }

func (t *Thread) top() *frame {
	if len(t.Frames) == 0 {
		return nil
	}
	return &t.Frames[len(t.Frames)-1]
}

func (t *Thread) push(seq []*Node) {
	t.Frames = append(t.Frames, frame{seq: seq})
}

func (t *Thread) pop() { t.Frames = t.Frames[:len(t.Frames)-1] }

// ThreadSet owns every live Thread of one ChpProcessInstance, keyed by
// ID, the model the design notes require in place of real goroutines.
type ThreadSet struct {
	threads map[int]*Thread
	nextID  int
}

func newThreadSet() *ThreadSet {
	return &ThreadSet{threads: make(map[int]*Thread)}
}

func (ts *ThreadSet) spawn(seq []*Node) *Thread {
	ts.nextID++
	th := &Thread{ID: ts.nextID, Frames: []frame{{seq: seq}}}
	ts.threads[th.ID] = th
	return th
}

func (ts *ThreadSet) remove(id int) { delete(ts.threads, id) }

func (ts *ThreadSet) get(id int) (*Thread, bool) {
	th, ok := ts.threads[id]
	return th, ok
}

func (ts *ThreadSet) Len() int { return len(ts.threads) }

func (ts *ThreadSet) IDs() []int {
	out := make([]int, 0, len(ts.threads))
	for id := range ts.threads {
		out = append(out, id)
	}
	return out
}
