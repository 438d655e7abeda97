package instance

import (
	"testing"

	"github.com/asyncvlsi/actsim/state"
	"github.com/stretchr/testify/require"
)

func TestResolveScalar(t *testing.T) {
	st := state.New()
	tree := NewTree(st)
	arb, err := tree.Root().AddChild("arb")
	require.NoError(t, err)
	ref, err := arb.DeclareBool("ack")
	require.NoError(t, err)

	got, err := tree.Root().Resolve("arb.ack")
	require.NoError(t, err)
	require.Equal(t, ref, got)
}

func TestResolveArrayIndex(t *testing.T) {
	st := state.New()
	tree := NewTree(st)
	arb, err := tree.Root().AddChild("arb")
	require.NoError(t, err)
	refs, err := arb.DeclareBoolArray("req", 4)
	require.NoError(t, err)

	got, err := tree.Root().Resolve("arb.req[2]")
	require.NoError(t, err)
	require.Equal(t, refs[2], got)
}

func TestResolveArrayRequiresIndex(t *testing.T) {
	st := state.New()
	tree := NewTree(st)
	arb, _ := tree.Root().AddChild("arb")
	_, err := arb.DeclareBoolArray("req", 4)
	require.NoError(t, err)

	_, err = tree.Root().Resolve("arb.req")
	require.Error(t, err)
}

func TestResolveUnknownChild(t *testing.T) {
	st := state.New()
	tree := NewTree(st)
	_, err := tree.Root().Resolve("nope.x")
	require.Error(t, err)
}

func TestCanonical(t *testing.T) {
	got, err := Canonical("a . b[ 2 ] .c")
	require.NoError(t, err)
	require.Equal(t, "a.b[2].c", got)
}

func TestDeclareDuplicateRejected(t *testing.T) {
	st := state.New()
	tree := NewTree(st)
	_, err := tree.Root().DeclareBool("x")
	require.NoError(t, err)
	_, err = tree.Root().DeclareBool("x")
	require.Error(t, err)
}

func TestIntAndChannelOffsetsIndependentOfBool(t *testing.T) {
	st := state.New()
	tree := NewTree(st)
	n, _ := tree.Root().AddChild("p")
	_, err := n.DeclareBool("b")
	require.NoError(t, err)
	iref, err := n.DeclareInt("x", 8)
	require.NoError(t, err)
	require.Equal(t, 0, iref.Offset)
	cref, err := n.DeclareChannel("c", 1)
	require.NoError(t, err)
	require.Equal(t, 0, cref.Offset)
}
