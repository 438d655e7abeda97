package prs

import (
	"github.com/asyncvlsi/actsim/event"
	"github.com/asyncvlsi/actsim/exprlang"
	"github.com/asyncvlsi/actsim/instance"
	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/state"
)

// ExclusiveGroup declares a set of Bool nodes asserted to have at most
// one member "active" at a time: a High group forbids two members both
// reading One, a Low group forbids two members both reading Zero.
type ExclusiveGroup struct {
	Name string
	Refs []state.Ref
	High bool
}

// prsUpdate is the payload of a KindPrsUpdate event: the node an
// inertial-delay transition targets, and the value it was scheduled to
// drive when it was posted.
type prsUpdate struct {
	node   *Node
	target state.Tern
}

// Network owns every PRS node and exclusive-monitor group sharing one
// instance scope and implements event.Dispatcher so the kernel can
// deliver KindPrsUpdate events back to it.
type Network struct {
	store  *state.Store
	scope  *instance.Node
	kernel *event.Kernel

	nodes  []*Node
	byRef  map[state.Ref]*Node
	groups []ExclusiveGroup

	policy simerr.Policy
	onWarn func(*simerr.Error)
	fatal  *simerr.Error
}

// NewNetwork builds an empty Network over store/scope, scheduling its
// inertial-delay transitions through kernel.
func NewNetwork(store *state.Store, scope *instance.Node, kernel *event.Kernel) *Network {
	return &Network{
		store:  store,
		scope:  scope,
		kernel: kernel,
		byRef:  make(map[state.Ref]*Node),
	}
}

// SetPolicy controls how a pull-up/pull-down conflict or an exclusive-
// group violation is handled once raised, the same three-way choice
// simerr.Policy gives assert mismatches.
func (net *Network) SetPolicy(p simerr.Policy) { net.policy = p }

// OnWarning installs a callback invoked for every Warning this network
// raises, regardless of policy, so the simulator layer can log it.
func (net *Network) OnWarning(f func(*simerr.Error)) { net.onWarn = f }

// Fatal reports the last warning raised while the policy was
// PolicyExit, for the driver loop to check after each dispatch.
func (net *Network) Fatal() *simerr.Error { return net.fatal }

func (net *Network) env() prsEnv { return prsEnv{scope: net.scope, store: net.store} }

// Node looks up the Node driving ref, if any.
func (net *Network) Node(ref state.Ref) (*Node, bool) {
	n, ok := net.byRef[ref]
	return n, ok
}

// AddNode registers a node driving ref from the given pull-up/pull-down
// rule sets, subscribing it to every Bool/Int fanin either rule set
// reads so a change to any of them re-triggers evaluation, exactly the
// symmetric-fanout invariant chp's guard waits rely on.
func (net *Network) AddNode(ref state.Ref, name string, pullUp, pullDown []*exprlang.Program, delay *int64) (*Node, error) {
	if ref.Kind != state.KindBool {
		return nil, simerr.New(simerr.TypeDomain, "%s: a production rule can only drive a Bool node", name)
	}
	n := &Node{Ref: ref, Name: name, PullUp: pullUp, PullDown: pullDown, Delay: delay}
	net.nodes = append(net.nodes, n)
	net.byRef[ref] = n

	seen := make(map[string]bool)
	subscribeAll := func(progs []*exprlang.Program) error {
		for _, p := range progs {
			for _, fn := range p.FreeNames() {
				if seen[fn] {
					continue
				}
				seen[fn] = true
				fref, err := net.scope.Resolve(fn)
				if err != nil {
					return err
				}
				if _, err := net.store.Subscribe(fref, state.WatcherFunc(func(state.Ref) {
					net.evaluate(n)
				})); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := subscribeAll(pullUp); err != nil {
		return nil, err
	}
	if err := subscribeAll(pullDown); err != nil {
		return nil, err
	}
	net.evaluate(n)
	return n, nil
}

// AddExclusiveGroup registers a monitor group and subscribes to every
// member so a violation is caught the moment it occurs.
func (net *Network) AddExclusiveGroup(name string, refs []state.Ref, high bool) error {
	g := ExclusiveGroup{Name: name, Refs: refs, High: high}
	net.groups = append(net.groups, g)
	for _, ref := range refs {
		if _, err := net.store.Subscribe(ref, state.WatcherFunc(func(state.Ref) {
			net.checkExclusive(g)
		})); err != nil {
			return err
		}
	}
	return nil
}

func (net *Network) checkExclusive(g ExclusiveGroup) {
	active := state.Zero
	if g.High {
		active = state.One
	}
	count := 0
	for _, ref := range g.Refs {
		v, err := net.store.GetBool(ref)
		if err != nil {
			continue
		}
		if v == active {
			count++
		}
	}
	if count > 1 {
		level := "low"
		if g.High {
			level = "high"
		}
		net.warn(simerr.New(simerr.Warning, "exclusive-%s group %q: %d members simultaneously active", level, g.Name, count))
	}
}

// evaluate re-decides n's target value from its current fanin state and
// (re)schedules or cancels its pending inertial-delay transition to
// match. Called once at registration and again every time a fanin of n
// mutates.
func (net *Network) evaluate(n *Node) {
	res, err := net.combine(n)
	if err != nil {
		net.warn(simerr.Wrap(simerr.Warning, err, "%s: guard evaluation failed", n.Name))
		return
	}
	if res.conflict {
		net.warn(simerr.New(simerr.Warning, "%s: pull-up and pull-down both true, driving X", n.Name))
	}
	if res.hold {
		net.cancelPending(n)
		return
	}
	current, err := net.store.GetBool(n.Ref)
	if err != nil {
		return
	}
	if current == res.target {
		net.cancelPending(n)
		return
	}
	if n.pendingValid && n.pendingTarget == res.target {
		return
	}
	net.cancelPending(n)
	net.schedule(n, res.target)
}

func (net *Network) schedule(n *Node, target state.Tern) {
	delay := net.kernel.DelayPolicy().Resolve(n.Delay, net.kernel.Rand())
	handle := net.kernel.Push(&event.Event{
		Deadline: net.kernel.Now().AddInt64(delay),
		Owner:    event.Owner{Tag: event.OwnerPrs, Index: n.Ref.Offset},
		Kind:     event.KindPrsUpdate,
		Payload:  prsUpdate{node: n, target: target},
	})
	n.pendingValid = true
	n.pendingHandle = handle
	n.pendingTarget = target
}

func (net *Network) cancelPending(n *Node) {
	if !n.pendingValid {
		return
	}
	net.kernel.Cancel(n.pendingHandle)
	n.pendingValid = false
}

// Dispatch delivers a KindPrsUpdate event: the inertial-delay rule. A
// transition only actually drives its node if the guard that scheduled
// it is still valid when the event fires; if the fanin state has moved
// on since, the transition that would have happened is silently dropped
// -- the glitch that triggered it never reached the node at all.
func (net *Network) Dispatch(ev *event.Event) error {
	upd, ok := ev.Payload.(prsUpdate)
	if !ok {
		return simerr.New(simerr.Fatal, "prs.Network.Dispatch: unexpected event payload")
	}
	n := upd.node
	n.pendingValid = false

	res, err := net.combine(n)
	if err != nil {
		return err
	}
	if res.hold || res.target != upd.target {
		return nil
	}
	if err := net.store.SetBool(n.Ref, upd.target); err != nil {
		return err
	}
	n.Steps++
	if net.fatal != nil {
		return net.fatal
	}
	return nil
}

// TotalSteps sums the metering-hook step count of every node in the
// network, for a future energy/leakage command to read.
func (net *Network) TotalSteps() uint64 {
	var total uint64
	for _, n := range net.nodes {
		total += n.Steps
	}
	return total
}

func (net *Network) warn(err *simerr.Error) {
	if net.onWarn != nil {
		net.onWarn(err)
	}
	switch net.policy {
	case simerr.PolicyBreak:
		net.kernel.RaiseBreakpoint()
	case simerr.PolicyExit:
		net.fatal = err
		net.kernel.RaiseBreakpoint()
	}
}
