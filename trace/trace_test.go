package trace

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asyncvlsi/actsim/bigint"
	"github.com/asyncvlsi/actsim/instance"
	"github.com/asyncvlsi/actsim/simtime"
	"github.com/asyncvlsi/actsim/state"
)

func TestVCDSessionWritesDeclarationsAndValueChanges(t *testing.T) {
	store := state.New()
	tree := instance.NewTree(store)
	root := tree.Root()
	a, err := root.DeclareBool("a")
	require.NoError(t, err)
	require.NoError(t, store.SetBool(a, state.One))

	path := t.TempDir() + "/out.vcd"
	reg := NewRegistry()
	vcd, ok := reg.Backend("vcd")
	require.True(t, ok)

	sess := NewSession(store)
	require.NoError(t, sess.Start(vcd, path, 1e-9, map[string]state.Ref{"a": a}))
	require.NoError(t, sess.Observe("a", simtime.FromInt64(5)))
	require.NoError(t, sess.Stop())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "$var wire 64")
	require.Contains(t, string(data), "#5")
	require.Contains(t, string(data), "b1 ")
}

func TestObserveIgnoresUndeclaredSignal(t *testing.T) {
	store := state.New()
	tree := instance.NewTree(store)
	root := tree.Root()
	a, err := root.DeclareBool("a")
	require.NoError(t, err)
	b, err := root.DeclareBool("b")
	require.NoError(t, err)

	path := t.TempDir() + "/out.vcd"
	reg := NewRegistry()
	vcd, _ := reg.Backend("vcd")
	sess := NewSession(store)
	require.NoError(t, sess.Start(vcd, path, 1e-9, map[string]state.Ref{"a": a}))
	_ = b
	require.NoError(t, sess.Observe("b", simtime.FromInt64(1)), "undeclared signal is silently ignored, not an error")
	require.NoError(t, sess.Stop())
}

func TestStartTwiceWithoutStopIsStateIllegal(t *testing.T) {
	store := state.New()
	tree := instance.NewTree(store)
	root := tree.Root()
	a, err := root.DeclareBool("a")
	require.NoError(t, err)

	reg := NewRegistry()
	vcd, _ := reg.Backend("vcd")
	sess := NewSession(store)
	require.NoError(t, sess.Start(vcd, t.TempDir()+"/one.vcd", 1e-9, map[string]state.Ref{"a": a}))
	err = sess.Start(vcd, t.TempDir()+"/two.vcd", 1e-9, map[string]state.Ref{"a": a})
	require.Error(t, err)
}

func TestRenderBitsForIntReflectsWidth(t *testing.T) {
	store := state.New()
	tree := instance.NewTree(store)
	root := tree.Root()
	x, err := root.DeclareInt("x", 4)
	require.NoError(t, err)
	require.NoError(t, store.SetInt(x, bigint.FromUint64(4, 5)))

	bits, err := RenderBits(store, x)
	require.NoError(t, err)
	require.Equal(t, "0101", bits)
}

func TestCoverageStoreDedupesTransitions(t *testing.T) {
	cov := NewCoverageStore()

	isNew, err := cov.Observe("a", "1")
	require.NoError(t, err)
	require.True(t, isNew)
	require.Equal(t, 1, cov.Count())

	isNew, err = cov.Observe("a", "1")
	require.NoError(t, err)
	require.False(t, isNew, "repeat of the same transition is not new coverage")
	require.Equal(t, 1, cov.Count())

	isNew, err = cov.Observe("a", "0")
	require.NoError(t, err)
	require.True(t, isNew, "same signal, different value, is new coverage")
	require.Equal(t, 2, cov.Count())
}
