package watch

import (
	"bytes"
	"io"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/asyncvlsi/actsim/bigint"
	"github.com/asyncvlsi/actsim/event"
	"github.com/asyncvlsi/actsim/instance"
	"github.com/asyncvlsi/actsim/state"
)

func newTestKernel() *event.Kernel {
	return event.NewKernel(event.DispatcherFunc(func(ev *event.Event) error { return nil }), 1)
}

func TestWatchEmitsLineOnMutation(t *testing.T) {
	store := state.New()
	tree := instance.NewTree(store)
	root := tree.Root()
	kernel := newTestKernel()

	var buf bytes.Buffer
	r := NewRegistry(store, kernel, &buf, zerolog.New(io.Discard))

	a, err := root.DeclareBool("a")
	require.NoError(t, err)
	r.Watch(a, "[top] a")

	require.NoError(t, store.SetBool(a, state.One))
	require.Contains(t, buf.String(), "[top] a := 1")
}

func TestUnwatchStopsFurtherLines(t *testing.T) {
	store := state.New()
	tree := instance.NewTree(store)
	root := tree.Root()
	kernel := newTestKernel()

	var buf bytes.Buffer
	r := NewRegistry(store, kernel, &buf, zerolog.New(io.Discard))

	a, err := root.DeclareBool("a")
	require.NoError(t, err)
	r.Watch(a, "[top] a")
	r.Unwatch(a)

	require.NoError(t, store.SetBool(a, state.One))
	require.Empty(t, buf.String())
}

func TestBreakptRaisesKernelBreakpoint(t *testing.T) {
	store := state.New()
	tree := instance.NewTree(store)
	root := tree.Root()
	kernel := newTestKernel()

	r := NewRegistry(store, kernel, io.Discard, zerolog.New(io.Discard))
	a, err := root.DeclareBool("a")
	require.NoError(t, err)
	r.Breakpt(a, "[top] a")

	require.False(t, kernel.Breakpoint())
	require.NoError(t, store.SetBool(a, state.One))
	require.True(t, kernel.Breakpoint())
}

func TestFilterSuppressesNonMatchingLines(t *testing.T) {
	store := state.New()
	tree := instance.NewTree(store)
	root := tree.Root()
	kernel := newTestKernel()

	var buf bytes.Buffer
	r := NewRegistry(store, kernel, &buf, zerolog.New(io.Discard))
	r.Filter(regexp.MustCompile(`\bb\b`))

	a, err := root.DeclareBool("a")
	require.NoError(t, err)
	b, err := root.DeclareBool("b")
	require.NoError(t, err)
	r.Watch(a, "a")
	r.Watch(b, "b")

	require.NoError(t, store.SetBool(a, state.One))
	require.Empty(t, buf.String(), "a's line does not match the filter")

	require.NoError(t, store.SetBool(b, state.One))
	require.Contains(t, buf.String(), "b := 1")
}

func TestChannelAndIntValuesRenderThroughWatch(t *testing.T) {
	store := state.New()
	tree := instance.NewTree(store)
	root := tree.Root()
	kernel := newTestKernel()

	var buf bytes.Buffer
	r := NewRegistry(store, kernel, &buf, zerolog.New(io.Discard))

	x, err := root.DeclareInt("x", 8)
	require.NoError(t, err)
	r.Watch(x, "x")
	require.NoError(t, store.SetInt(x, bigint.FromUint64(8, 5)))
	require.Contains(t, buf.String(), "x := 5")

	c, err := root.DeclareChannel("c", 1)
	require.NoError(t, err)
	r.Watch(c, "c")
	require.NoError(t, store.NotifyChannel(c))
	require.Contains(t, buf.String(), "c := Idle")
}
