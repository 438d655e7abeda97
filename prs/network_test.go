package prs

import (
	"testing"

	"github.com/asyncvlsi/actsim/event"
	"github.com/asyncvlsi/actsim/exprlang"
	"github.com/asyncvlsi/actsim/instance"
	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/simtime"
	"github.com/asyncvlsi/actsim/state"
	"github.com/stretchr/testify/require"
)

func compileExpr(t *testing.T, src string) *exprlang.Program {
	t.Helper()
	p, err := exprlang.CompileExpr(src)
	require.NoError(t, err)
	return p
}

// newTestNetwork wires a Network to a Kernel whose single Dispatcher
// forwards every event back into it, the pattern a real simulator's
// top-level Dispatch would use to route by Owner.Tag.
func newTestNetwork(t *testing.T) (*Network, *instance.Node, *event.Kernel) {
	t.Helper()
	store := state.New()
	tree := instance.NewTree(store)
	root := tree.Root()

	var net *Network
	kernel := event.NewKernel(event.DispatcherFunc(func(ev *event.Event) error {
		return net.Dispatch(ev)
	}), 1)
	net = NewNetwork(store, root, kernel)
	return net, root, kernel
}

func TestBufferDrivesOutputAfterInertialDelay(t *testing.T) {
	net, root, kernel := newTestNetwork(t)
	a, err := root.DeclareBool("a")
	require.NoError(t, err)
	out, err := root.DeclareBool("out")
	require.NoError(t, err)
	require.NoError(t, net.store.SetBool(a, state.Zero))

	_, err = net.AddNode(out, "out", []*exprlang.Program{compileExpr(t, "a")}, []*exprlang.Program{compileExpr(t, "not a")}, nil)
	require.NoError(t, err)

	require.NoError(t, kernel.Advance(simtime.FromInt64(1)))
	v, err := net.store.GetBool(out)
	require.NoError(t, err)
	require.Equal(t, state.Zero, v, "pull-down should have driven out low from its initial X")

	require.NoError(t, net.store.SetBool(a, state.One))
	require.NoError(t, kernel.Advance(simtime.FromInt64(1)))
	v, err = net.store.GetBool(out)
	require.NoError(t, err)
	require.Equal(t, state.One, v)
}

func TestGlitchBeforeDelayExpiresNeverDrives(t *testing.T) {
	net, root, kernel := newTestNetwork(t)
	a, err := root.DeclareBool("a")
	require.NoError(t, err)
	out, err := root.DeclareBool("out")
	require.NoError(t, err)
	require.NoError(t, net.store.SetBool(a, state.Zero))

	delay := int64(10)
	_, err = net.AddNode(out, "out", []*exprlang.Program{compileExpr(t, "a")}, []*exprlang.Program{compileExpr(t, "not a")}, &delay)
	require.NoError(t, err)
	require.NoError(t, kernel.Advance(simtime.FromInt64(20)))
	v, err := net.store.GetBool(out)
	require.NoError(t, err)
	require.Equal(t, state.Zero, v, "initial pull-down should have settled out low by now")

	// a glitches high then immediately back low, with no simulated time
	// passing between the two writes: the pending transition to One this
	// would have scheduled is cancelled before its 10-tick delay expires,
	// so out must never have been driven high.
	require.NoError(t, net.store.SetBool(a, state.One))
	require.NoError(t, net.store.SetBool(a, state.Zero))

	require.NoError(t, kernel.Advance(simtime.FromInt64(20)))
	v, err = net.store.GetBool(out)
	require.NoError(t, err)
	require.Equal(t, state.Zero, v, "out must hold low through the glitch, never having been driven high")
}

func TestPullUpAndPullDownConflictDrivesXWithWarning(t *testing.T) {
	net, root, kernel := newTestNetwork(t)
	a, err := root.DeclareBool("a")
	require.NoError(t, err)
	b, err := root.DeclareBool("b")
	require.NoError(t, err)
	out, err := root.DeclareBool("out")
	require.NoError(t, err)
	require.NoError(t, net.store.SetBool(a, state.Zero))
	require.NoError(t, net.store.SetBool(b, state.Zero))

	var warned *simerr.Error
	net.OnWarning(func(e *simerr.Error) { warned = e })

	_, err = net.AddNode(out, "out", []*exprlang.Program{compileExpr(t, "a")}, []*exprlang.Program{compileExpr(t, "b")}, nil)
	require.NoError(t, err)

	require.NoError(t, net.store.SetBool(a, state.One))
	require.NoError(t, net.store.SetBool(b, state.One))
	require.NoError(t, kernel.Advance(simtime.FromInt64(1)))

	v, err := net.store.GetBool(out)
	require.NoError(t, err)
	require.Equal(t, state.X, v)
	require.NotNil(t, warned)
}

func TestExclusiveHighGroupViolationWarns(t *testing.T) {
	net, root, kernel := newTestNetwork(t)
	_ = kernel
	r1, err := root.DeclareBool("r1")
	require.NoError(t, err)
	r2, err := root.DeclareBool("r2")
	require.NoError(t, err)
	require.NoError(t, net.store.SetBool(r1, state.Zero))
	require.NoError(t, net.store.SetBool(r2, state.Zero))

	var warned *simerr.Error
	net.OnWarning(func(e *simerr.Error) { warned = e })
	require.NoError(t, net.AddExclusiveGroup("grant", []state.Ref{r1, r2}, true))

	require.NoError(t, net.store.SetBool(r1, state.One))
	require.Nil(t, warned, "only one member active so far, no violation")

	require.NoError(t, net.store.SetBool(r2, state.One))
	require.NotNil(t, warned, "both members active at once must be flagged")
}

func TestPolicyExitSurfacesFatalFromConflict(t *testing.T) {
	net, root, kernel := newTestNetwork(t)
	a, err := root.DeclareBool("a")
	require.NoError(t, err)
	b, err := root.DeclareBool("b")
	require.NoError(t, err)
	out, err := root.DeclareBool("out")
	require.NoError(t, err)
	require.NoError(t, net.store.SetBool(a, state.Zero))
	require.NoError(t, net.store.SetBool(b, state.Zero))
	net.SetPolicy(simerr.PolicyExit)

	_, err = net.AddNode(out, "out", []*exprlang.Program{compileExpr(t, "a")}, []*exprlang.Program{compileExpr(t, "b")}, nil)
	require.NoError(t, err)

	require.NoError(t, net.store.SetBool(a, state.One))
	require.NoError(t, net.store.SetBool(b, state.One))
	require.NoError(t, kernel.Advance(simtime.FromInt64(1)))

	require.NotNil(t, net.Fatal())
	require.True(t, kernel.Breakpoint())
}
