package chp

import (
	"github.com/asyncvlsi/actsim/bigint"
	"github.com/asyncvlsi/actsim/event"
	"github.com/asyncvlsi/actsim/exprlang"
	"github.com/asyncvlsi/actsim/instance"
	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/state"
)

// ResumeToken identifies one thread of one process, the Resume value
// every Send/Recv/Subscribe callback in this package hands to the
// channel and state packages so a completed rendezvous or a satisfied
// guard can find its way back to the right runThread call.
//
// A guard or join wakeup carries ChannelComplete false: the resumed
// thread re-evaluates its blocked node from scratch, which is exactly
// right for a guard (its condition may have changed again since) and
// for nothing else blocks that way. A rendezvous wakeup carries
// ChannelComplete true with Delivered set: by the time the peer is
// woken, the FSM has already reset to Idle, so re-running the blocked
// NSend/NRecv node would attempt a brand new transfer instead of
// finishing the one that already happened -- the resumed thread must
// instead be told its operation is done and move on.
type ResumeToken struct {
	ProcIndex       int
	ThreadID        int
	ChannelComplete bool
	Delivered       bigint.Uint
}

// Process interprets one compiled CHP/HSE program graph: a single
// instance's worth of NodeKind tree, walked by an explicit ThreadSet
// rather than goroutines, per the design notes' "coroutine-like CHP
// threads" requirement.
type Process struct {
	Name  string
	Index int

	store   *state.Store
	scope   *instance.Node
	kernel  *event.Kernel
	threads *ThreadSet
	labels  map[string]frame
	initial *Node

	// retiredSteps accumulates the Steps metering hook of threads that
	// have already finished, so TotalSteps reports a running total
	// rather than losing counts as threads complete.
	retiredSteps uint64

	// Wake resumes the thread named by tok, which may belong to this
	// Process or any other one in the simulation. The simulator layer
	// installs this to route a resumption through the kernel's event
	// queue; left nil, same-process wakeups resolve synchronously and
	// cross-process ones are dropped, which is enough for package tests
	// that drive a single Process directly.
	Wake func(tok ResumeToken)
}

// NewProcess compiles body's label table and prepares an otherwise idle
// Process; call Start to spawn and run its initial thread.
func NewProcess(name string, index int, store *state.Store, scope *instance.Node, kernel *event.Kernel, body *Node) *Process {
	labels := make(map[string]frame)
	collectLabels(body, labels)
	return &Process{
		Name:    name,
		Index:   index,
		store:   store,
		scope:   scope,
		kernel:  kernel,
		threads: newThreadSet(),
		labels:  labels,
		initial: body,
	}
}

func (p *Process) env() chpEnv { return chpEnv{scope: p.scope, store: p.store} }

// Threads exposes the set of currently live thread IDs, used by the
// simulator's procinfo/status commands and by deadlock detection.
func (p *Process) Threads() []int { return p.threads.IDs() }

// Start spawns and runs the process's single initial thread.
func (p *Process) Start() error {
	th := p.threads.spawn(seqOf(p.initial))
	return p.runThread(th)
}

// Resume re-enters a previously blocked thread, called by the simulator
// once Wake reports it is ready (a rendezvous completed or a guard
// fanin changed). A missing thread ID is not an error: the thread may
// have already finished through some other path.
func (p *Process) Resume(tok ResumeToken) error {
	th, ok := p.threads.get(tok.ThreadID)
	if !ok {
		return nil
	}
	if tok.ChannelComplete {
		return p.completeChannelOp(th, tok.Delivered)
	}
	return p.runThread(th)
}

// completeChannelOp finishes the NSend/NRecv node th was parked on once
// its peer has performed the matching half of the rendezvous, without
// asking the (already-reset) FSM to transition again.
func (p *Process) completeChannelOp(th *Thread, delivered bigint.Uint) error {
	fr := th.top()
	if fr == nil || fr.idx >= len(fr.seq) {
		return simerr.New(simerr.Fatal, "channel completion on a thread with nothing pending")
	}
	node := fr.seq[fr.idx]
	if node.Kind == NRecv {
		if err := uintToRef(p.store, node.RecvVar, delivered); err != nil {
			return err
		}
	}
	fr.idx++
	th.Wait = WaitNone
	th.Chan = state.Ref{}
	return p.runThread(th)
}

func seqOf(n *Node) []*Node {
	if n.Kind == NSeq {
		return n.Children
	}
	return []*Node{n}
}

// collectLabels records, for every NLabel it finds inside a sequence
// (top-level or nested in a PAR branch, selection arm or loop body), the
// frame a NGoto naming it should resume into: the same statement slice,
// positioned just past the label.
func collectLabels(n *Node, out map[string]frame) {
	if n == nil {
		return
	}
	switch n.Kind {
	case NSeq, NPar:
		for i, c := range n.Children {
			if c.Kind == NLabel {
				out[c.Label] = frame{seq: n.Children, idx: i + 1}
			}
			collectLabels(c, out)
		}
	case NDetSel, NNondetSel:
		for _, g := range n.Guards {
			collectLabels(g.Body, out)
		}
	case NLoop:
		for _, g := range n.LoopGuards {
			collectLabels(g.Body, out)
		}
		collectLabels(n.Body, out)
	}
}

// runThread advances th as far as it will go without blocking: until it
// finishes, hits a NSend/NRecv with no waiting peer, or a selection/loop
// guard that cannot yet be resolved one way or the other.
func (p *Process) runThread(th *Thread) error {
	for {
		fr := th.top()
		if fr == nil {
			return p.finishThread(th)
		}
		if fr.idx >= len(fr.seq) {
			th.pop()
			continue
		}
		node := fr.seq[fr.idx]
		blocked, err := p.step(th, fr, node)
		if err != nil {
			return err
		}
		if blocked {
			return nil
		}
	}
}

func (p *Process) finishThread(th *Thread) error {
	p.retiredSteps += th.Steps
	p.threads.remove(th.ID)
	b := th.barrier
	if b == nil {
		return nil
	}
	b.remaining--
	if b.remaining > 0 {
		return nil
	}
	b.resume.Wait = WaitNone
	return p.runThread(b.resume)
}

func (p *Process) step(th *Thread, fr *frame, node *Node) (bool, error) {
	th.Steps++
	switch node.Kind {
	case NSkip, NLabel:
		fr.idx++
		return false, nil
	case NAssign:
		fr.idx++
		return false, p.doAssign(node)
	case NSeq:
		fr.idx++
		th.push(node.Children)
		return false, nil
	case NPar:
		fr.idx++
		return true, p.doPar(th, node)
	case NGoto:
		return p.doGoto(th, node)
	case NLoop:
		return p.doLoop(th, fr, node)
	case NSend:
		return p.doSend(th, fr, node)
	case NRecv:
		return p.doRecv(th, fr, node)
	case NDetSel:
		return p.doDetSel(th, fr, node)
	case NNondetSel:
		return p.doNondetSel(th, fr, node)
	default:
		return false, simerr.New(simerr.Fatal, "unknown node kind %d", node.Kind)
	}
}

func (p *Process) doAssign(node *Node) error {
	v, err := exprlang.Eval(node.Expr, p.env())
	if err != nil {
		return err
	}
	switch node.Target.Kind {
	case state.KindBool:
		if v.Kind != exprlang.KindBool {
			return simerr.New(simerr.TypeDomain, "cannot assign an Int-valued expression to a Bool variable")
		}
		return p.store.SetBool(node.Target, v.Bool)
	case state.KindInt:
		if v.Kind != exprlang.KindInt {
			return simerr.New(simerr.TypeDomain, "cannot assign a Bool-valued expression to an Int variable")
		}
		return p.store.SetInt(node.Target, v.Int)
	default:
		return simerr.New(simerr.TypeDomain, "cannot assign to a channel")
	}
}

// doPar forks one child thread per branch, all sharing a join barrier
// that reactivates th once every branch has finished. Branches start
// running immediately, in declaration order, within this same call:
// PAR concurrency is simulated by interleaving at blocking points, not
// by real goroutines.
func (p *Process) doPar(th *Thread, node *Node) error {
	barrier := &joinBarrier{remaining: len(node.Children), resume: th}
	th.Wait = WaitJoin
	children := make([]*Thread, 0, len(node.Children))
	for _, c := range node.Children {
		child := p.threads.spawn([]*Node{c})
		child.barrier = barrier
		children = append(children, child)
	}
	for _, child := range children {
		if err := p.runThread(child); err != nil {
			return err
		}
	}
	return nil
}

// doGoto is only legal when this Process has exactly one live thread:
// with more than one, which thread's control state "goto" would rewrite
// is ambiguous, so the design notes restrict it to the single-thread
// case and this rejects the rest as StateIllegal.
func (p *Process) doGoto(th *Thread, node *Node) (bool, error) {
	if p.threads.Len() != 1 {
		return false, simerr.New(simerr.StateIllegal, "goto %q: only valid with a single live thread in the process", node.Label)
	}
	target, ok := p.labels[node.Label]
	if !ok {
		return false, simerr.New(simerr.Resolution, "no such label %q", node.Label)
	}
	th.Frames = []frame{target}
	return false, nil
}

// doLoop implements both loop forms. A guarded loop `*[G->S]` re-checks
// its guards, in declaration order, every time its body frame pops back
// to this same node and exits cleanly the first time none hold. An
// infinite loop `*[ [...] ]` just keeps re-entering its body forever;
// the process never "finishes" this node on its own. Neither form
// advances fr.idx past the loop node itself except on a guarded loop's
// clean exit, so looping costs no stack growth: the body frame pops
// back to the very same index every iteration.
func (p *Process) doLoop(th *Thread, fr *frame, node *Node) (bool, error) {
	if len(node.LoopGuards) > 0 {
		sel, blocked, err := p.evalGuardsDet(th, node.LoopGuards, false)
		if err != nil {
			return false, err
		}
		if blocked {
			return true, nil
		}
		if sel == nil {
			fr.idx++
			return false, nil
		}
		th.push([]*Node{sel.Body})
		return false, nil
	}
	th.push([]*Node{node.Body})
	return false, nil
}

func (p *Process) doSend(th *Thread, fr *frame, node *Node) (bool, error) {
	fsm, err := p.store.Channel(node.Chan)
	if err != nil {
		return false, err
	}
	v, err := exprlang.Eval(node.SendExpr, p.env())
	if err != nil {
		return false, err
	}
	val, err := valueToUint(v, fsm.Width)
	if err != nil {
		return false, err
	}
	tok := ResumeToken{ProcIndex: p.Index, ThreadID: th.ID}
	res, err := fsm.Send(val, tok)
	if err != nil {
		return false, err
	}
	if err := p.store.NotifyChannel(node.Chan); err != nil {
		return false, err
	}
	if !res.Completed {
		th.Wait = WaitSend
		th.Chan = node.Chan
		return true, nil
	}
	fr.idx++
	th.Wait = WaitNone
	th.Chan = state.Ref{}
	if peer, ok := res.PeerResume.(ResumeToken); ok {
		peer.ChannelComplete = true
		peer.Delivered = res.Delivered
		p.wake(peer)
	}
	return false, nil
}

func (p *Process) doRecv(th *Thread, fr *frame, node *Node) (bool, error) {
	fsm, err := p.store.Channel(node.RecvChan)
	if err != nil {
		return false, err
	}
	tok := ResumeToken{ProcIndex: p.Index, ThreadID: th.ID}
	res, err := fsm.Recv(tok)
	if err != nil {
		return false, err
	}
	if err := p.store.NotifyChannel(node.RecvChan); err != nil {
		return false, err
	}
	if !res.Completed {
		th.Wait = WaitRecv
		th.Chan = node.RecvChan
		return true, nil
	}
	if err := uintToRef(p.store, node.RecvVar, res.Delivered); err != nil {
		return false, err
	}
	fr.idx++
	th.Wait = WaitNone
	th.Chan = state.Ref{}
	if peer, ok := res.PeerResume.(ResumeToken); ok {
		peer.ChannelComplete = true
		peer.Delivered = res.Delivered
		p.wake(peer)
	}
	return false, nil
}

func (p *Process) doDetSel(th *Thread, fr *frame, node *Node) (bool, error) {
	sel, blocked, err := p.evalGuardsDet(th, node.Guards, true)
	if err != nil {
		return false, err
	}
	if blocked || sel == nil {
		return true, nil
	}
	fr.idx++
	th.push([]*Node{sel.Body})
	return false, nil
}

func (p *Process) doNondetSel(th *Thread, fr *frame, node *Node) (bool, error) {
	sel, blocked, err := p.evalGuardsNondet(th, node.Guards)
	if err != nil {
		return false, err
	}
	if blocked || sel == nil {
		return true, nil
	}
	fr.idx++
	th.push([]*Node{sel.Body})
	return false, nil
}

// evalGuardsDet implements first-true-wins selection, shared by DET_SEL
// and guarded loops: the first guard, in declaration order, whose
// condition is unambiguously true. If none are true but at least one is
// still X, the outcome is undecided, so the thread blocks on every
// guard's fanins rather than treating X as false. What happens when
// every guard is definitely false (no X at all) depends on the caller:
// blockOnFalse is true for a bare selection statement, which always
// waits for a guard to become true, and false for a guarded loop, whose
// `*[G->S]` reading is "exit cleanly once G is false", not "wait for G".
func (p *Process) evalGuardsDet(th *Thread, guards []Guard, blockOnFalse bool) (*Guard, bool, error) {
	anyUnresolved := false
	for i := range guards {
		t, err := p.evalGuardCond(guards[i].Cond)
		if err != nil {
			return nil, false, err
		}
		if t == state.One {
			return &guards[i], false, nil
		}
		if t == state.X {
			anyUnresolved = true
		}
	}
	if anyUnresolved || blockOnFalse {
		p.blockOnGuards(th, guards)
		return nil, true, nil
	}
	return nil, false, nil
}

// evalGuardsNondet collects every guard that is unambiguously true and
// picks among them: uniformly at random when random_choice is enabled,
// lexically first (declaration order) otherwise. A nil Cond marks the
// trailing `else` arm, taken only once every other guard is known false.
func (p *Process) evalGuardsNondet(th *Thread, guards []Guard) (*Guard, bool, error) {
	var trueIdx []int
	var elseGuard *Guard
	anyUnknown := false
	for i := range guards {
		if guards[i].Cond == nil {
			elseGuard = &guards[i]
			continue
		}
		t, err := p.evalGuardCond(guards[i].Cond)
		if err != nil {
			return nil, false, err
		}
		switch t {
		case state.One:
			trueIdx = append(trueIdx, i)
		case state.X:
			anyUnknown = true
		}
	}
	if len(trueIdx) > 0 {
		idx := trueIdx[0]
		if len(trueIdx) > 1 && p.kernel != nil && p.kernel.RandomChoiceEnabled() {
			idx = trueIdx[p.kernel.Rand().Intn(len(trueIdx))]
		}
		return &guards[idx], false, nil
	}
	if !anyUnknown && elseGuard != nil {
		return elseGuard, false, nil
	}
	// Either some guard is still X, or every guard is definitely false
	// with no else arm to fall back to: both cases wait for a fanin to
	// change rather than erroring, matching a selection statement's
	// always-wait semantics. A "no guard will ever become true" deadlock
	// surfaces later, as a thread stuck in WaitGuard forever, not here.
	p.blockOnGuards(th, guards)
	return nil, true, nil
}

func (p *Process) evalGuardCond(cond *exprlang.Program) (state.Tern, error) {
	v, err := exprlang.Eval(cond, p.env())
	if err != nil {
		return state.X, err
	}
	if v.Kind != exprlang.KindBool {
		return state.X, simerr.New(simerr.TypeDomain, "guard expression did not evaluate to a Bool")
	}
	return v.Bool, nil
}

// blockOnGuards subscribes th to every free name appearing in guards'
// conditions (variables and probed channels alike, resolved through the
// same instance scope evaluation uses), so that any mutation affecting
// the outcome re-triggers a re-evaluation via onGuardFanin.
func (p *Process) blockOnGuards(th *Thread, guards []Guard) {
	seen := make(map[string]bool)
	for _, g := range guards {
		if g.Cond == nil {
			continue
		}
		for _, name := range g.Cond.FreeNames() {
			if seen[name] {
				continue
			}
			seen[name] = true
			ref, err := p.scope.Resolve(name)
			if err != nil {
				continue
			}
			tid := th.ID
			h, err := p.store.Subscribe(ref, state.WatcherFunc(func(state.Ref) {
				p.onGuardFanin(tid)
			}))
			if err != nil {
				continue
			}
			th.fanins = append(th.fanins, fanin{ref: ref, handle: h})
		}
	}
	th.Wait = WaitGuard
}

func (p *Process) onGuardFanin(threadID int) {
	th, ok := p.threads.get(threadID)
	if !ok {
		return
	}
	p.clearFanins(th)
	th.Wait = WaitNone
	p.wake(ResumeToken{ProcIndex: p.Index, ThreadID: threadID})
}

func (p *Process) clearFanins(th *Thread) {
	for _, f := range th.fanins {
		_ = p.store.Unsubscribe(f.ref, f.handle)
	}
	th.fanins = nil
}

// wake resumes tok's thread. With no Wake hook installed, only this
// Process's own threads can be resumed, which is all a package test
// driving a lone Process needs; the simulator always installs Wake so
// cross-process rendezvous wakeups are routed through the kernel.
func (p *Process) wake(tok ResumeToken) {
	if p.Wake != nil {
		p.Wake(tok)
		return
	}
	if tok.ProcIndex == p.Index {
		_ = p.Resume(tok)
	}
}
