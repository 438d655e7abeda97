package simulator

import (
	"bytes"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/asyncvlsi/actsim/channel"
	"github.com/asyncvlsi/actsim/chp"
	"github.com/asyncvlsi/actsim/event"
	"github.com/asyncvlsi/actsim/exprlang"
	"github.com/asyncvlsi/actsim/instance"
	"github.com/asyncvlsi/actsim/state"
)

func compileExpr(t *testing.T, src string) *exprlang.Program {
	t.Helper()
	p, err := exprlang.CompileExpr(src)
	require.NoError(t, err)
	return p
}

func newTestSimulator() *Simulator {
	return New(io.Discard, zerolog.New(io.Discard))
}

// TestHandshakeChannelCompletionCount drives two hand-built processes,
// P: *[ C!1 ] and Q: *[ C?x ], across a bounded run and checks the
// rendezvous count and delivered value the run settles into. The first
// two dispatched events are each process's own spawn; the spawn that
// runs second finds its peer already waiting and completes one
// rendezvous synchronously, and every dispatch after that alternately
// completes exactly one more, so N cycled events yield N-1 completions
// once N is at least 2.
func TestHandshakeChannelCompletionCount(t *testing.T) {
	s := newTestSimulator()

	ch, err := s.Tree().Root().DeclareChannel("C", 1)
	require.NoError(t, err)
	x, err := s.Tree().Root().DeclareInt("x", 1)
	require.NoError(t, err)

	pScope, err := s.Tree().Root().AddChild("P")
	require.NoError(t, err)
	qScope, err := s.Tree().Root().AddChild("Q")
	require.NoError(t, err)

	sendBody := chp.InfiniteLoop(chp.Send(ch, compileExpr(t, "1")))
	recvBody := chp.InfiniteLoop(chp.Recv(ch, x))

	s.AddProcess("P", pScope, sendBody)
	s.AddProcess("Q", qScope, recvBody)

	for i := range s.processes {
		s.kernel.Push(&event.Event{
			Deadline: s.kernel.Now(),
			Owner:    event.Owner{Tag: event.OwnerChp, Index: i},
			Kind:     event.KindChpResume,
			Payload:  startSignal{procIndex: i},
		})
	}

	stepped, more, err := s.Cycle(10)
	require.NoError(t, err)
	require.True(t, more, "an infinite handshake never quiesces on its own")
	require.Equal(t, 10, stepped)

	count, err := s.ChCount("C")
	require.NoError(t, err)
	require.Equal(t, uint64(9), count)

	v, err := s.Get("x")
	require.NoError(t, err)
	require.Equal(t, "1", v)
}

// runNondetLoop builds a process that runs a non-deterministic selection
// between two always-true guards five times, folding each iteration's
// choice into counter as a bit (1 for the first guard, 0 for the
// second), and returns counter's final value. It mirrors the raw
// chp.NewProcess construction chp/process_test.go uses rather than
// going through a Simulator, since nothing here needs the kernel for
// anything but its PRNG and random_choice flag.
func runNondetLoop(t *testing.T, seed int64, randomChoice bool) uint64 {
	t.Helper()
	store := state.New()
	tree := instance.NewTree(store)
	root := tree.Root()

	a, err := root.DeclareBool("a")
	require.NoError(t, err)
	require.NoError(t, store.SetBool(a, state.One))
	a2, err := root.DeclareBool("a2")
	require.NoError(t, err)
	require.NoError(t, store.SetBool(a2, state.One))
	counter, err := root.DeclareInt("counter", 8)
	require.NoError(t, err)
	i, err := root.DeclareInt("i", 8)
	require.NoError(t, err)

	iterBody := chp.Seq(
		chp.NondetSel(
			chp.Guard{Cond: compileExpr(t, "a"), Body: chp.Assign(counter, compileExpr(t, "counter * 2 + 1"))},
			chp.Guard{Cond: compileExpr(t, "a2"), Body: chp.Assign(counter, compileExpr(t, "counter * 2"))},
		),
		chp.Assign(i, compileExpr(t, "i + 1")),
	)
	body := chp.GuardedLoop(chp.Guard{Cond: compileExpr(t, "i < 5"), Body: iterBody})

	kernel := event.NewKernel(event.DispatcherFunc(func(ev *event.Event) error { return nil }), seed)
	kernel.SetRandomChoice(randomChoice)

	p := chp.NewProcess("t", 0, store, root, kernel, body)
	require.NoError(t, p.Start())
	require.Equal(t, 0, len(p.Threads()), "the loop must run to completion without blocking")

	v, err := store.GetInt(counter)
	require.NoError(t, err)
	return v.Uint64()
}

// TestNondetSelectFirstTrueGuardWhenChoiceIsOff exercises the "off"
// half: with random_choice disabled, a select with more than one true
// guard always takes the first in declaration order, so five iterations
// against two always-true guards always fold to the same bit pattern.
func TestNondetSelectFirstTrueGuardWhenChoiceIsOff(t *testing.T) {
	require.Equal(t, uint64(0b11111), runNondetLoop(t, 42, false))
	require.Equal(t, uint64(0b11111), runNondetLoop(t, 7, false), "declaration order wins regardless of seed")
}

// TestNondetSelectReproducibleUnderFixedSeed exercises the "on" half:
// with random_choice enabled, two independently constructed runs seeded
// alike must choose identically at every one of the five iterations.
func TestNondetSelectReproducibleUnderFixedSeed(t *testing.T) {
	first := runNondetLoop(t, 42, true)
	second := runNondetLoop(t, 42, true)
	require.Equal(t, first, second)
}

// TestSetRejectsWidthOverflow covers a width-4 Int variable rejecting a
// value that does not fit its declared bitwidth.
func TestSetRejectsWidthOverflow(t *testing.T) {
	s := newTestSimulator()
	_, err := s.Tree().Root().DeclareInt("x", 4)
	require.NoError(t, err)

	err = s.Set("x", "16")
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not fit into variable's bitwidth")

	v, err := s.Get("x")
	require.NoError(t, err)
	require.Equal(t, "0", v, "a rejected write must leave the slot unchanged")
}

// TestWatchLogsOnlyOnValueChange covers the suppress-when-unchanged
// invariant enforced at the store level: repeating the same value must
// not produce a second watch line.
func TestWatchLogsOnlyOnValueChange(t *testing.T) {
	s := newTestSimulator()
	_, err := s.Tree().Root().DeclareBool("n")
	require.NoError(t, err)

	var buf bytes.Buffer
	s.Logfile(&buf)
	require.NoError(t, s.Watch("n"))

	require.NoError(t, s.Set("n", "1"))
	require.NoError(t, s.Set("n", "1"))
	require.NoError(t, s.Set("n", "0"))

	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	require.Equal(t, 2, lines)
	require.Contains(t, buf.String(), "n := 1")
	require.Contains(t, buf.String(), "n := 0")
}

// TestGCRetryFlowNotNeededForExternalSet covers the deadlock/wake path
// directly: a process blocked on a false guard with no internal driver
// is reported deadlocked, an external set on its fanin wakes it (the
// value is visible immediately) but leaves its pc where it was until
// the next dispatched event actually resumes the thread.
func TestGCRetryFlowNotNeededForExternalSet(t *testing.T) {
	s := newTestSimulator()
	scope, err := s.Tree().Root().AddChild("p")
	require.NoError(t, err)
	x, err := scope.DeclareBool("x")
	require.NoError(t, err)
	require.NoError(t, s.Store().SetBool(x, state.Zero))

	body := chp.Seq(chp.DetSel(chp.Guard{Cond: compileExpr(t, "x"), Body: chp.Skip()}))
	proc := s.AddProcess("p", scope, body)
	require.NoError(t, proc.Start())
	require.Equal(t, 1, len(proc.Threads()))
	require.True(t, proc.Deadlocked())

	require.NoError(t, s.Set("p.x", "1"))

	v, err := s.Get("p.x")
	require.NoError(t, err)
	require.Equal(t, "1", v)
	require.Equal(t, 1, len(proc.Threads()), "the guard fanin only posts a resume event, it does not run the thread synchronously")

	more, err := s.Step(1)
	require.NoError(t, err)
	require.False(t, more)
	require.Equal(t, 0, len(proc.Threads()), "the dispatched resume must re-evaluate the guard and finish the selection")
}

// TestAssertComparesResolvedValue covers the assert command actually
// resolving name and comparing against value, for both a matching and a
// mismatching Bool and Int, rather than just reporting whatever bool a
// caller already computed.
func TestAssertComparesResolvedValue(t *testing.T) {
	s := newTestSimulator()
	_, err := s.Tree().Root().DeclareBool("g")
	require.NoError(t, err)
	require.NoError(t, s.Set("g", "1"))
	_, err = s.Tree().Root().DeclareInt("x", 8)
	require.NoError(t, err)
	require.NoError(t, s.Set("x", "5"))

	require.NoError(t, s.Assert("g", "1"), "a matching Bool assert must not warn")
	require.NoError(t, s.Assert("x", "5"), "a matching Int assert must not warn")
	require.Nil(t, s.LastWarning())

	require.NoError(t, s.Assert("g", "0"), "under the default ignore policy a mismatch is reported, not returned as an error")
	require.NotNil(t, s.LastWarning())
	require.Contains(t, s.LastWarning().Error(), "g")

	require.NoError(t, s.Assert("x", "6"))
	require.Contains(t, s.LastWarning().Error(), "x")
}

// TestAssertComparesChannelPhase covers assert's other documented target
// -- a channel's phase string -- since a channel cannot be Set directly
// but the assert contract explicitly names "slot/channel state".
func TestAssertComparesChannelPhase(t *testing.T) {
	s := newTestSimulator()
	_, err := s.Tree().Root().DeclareChannel("C", 8)
	require.NoError(t, err)

	require.NoError(t, s.Assert("C", "Idle"))

	s.BreakOnWarn()
	require.NoError(t, s.Assert("C", "WaitingSender"), "break policy still returns nil, it only raises the breakpoint flag")
	require.True(t, s.Kernel().Breakpoint())
}

// TestAssertUnknownNameFails covers assert reporting a Resolution error
// (not a warning) when name does not exist, since that is a usage
// mistake, not a runtime anomaly the warning policy governs.
func TestAssertUnknownNameFails(t *testing.T) {
	s := newTestSimulator()
	err := s.Assert("nosuch", "1")
	require.Error(t, err)
}

// TestSkipCommReleasesBlockedSender covers releasing a sender parked on
// an unmatched send without ever completing the rendezvous.
func TestSkipCommReleasesBlockedSender(t *testing.T) {
	s := newTestSimulator()
	scope, err := s.Tree().Root().AddChild("p")
	require.NoError(t, err)
	ch, err := s.Tree().Root().DeclareChannel("C", 8)
	require.NoError(t, err)

	body := chp.Seq(chp.Send(ch, compileExpr(t, "5")))
	proc := s.AddProcess("p", scope, body)
	require.NoError(t, proc.Start())
	require.Equal(t, 1, len(proc.Threads()))

	fsm, err := s.Store().Channel(ch)
	require.NoError(t, err)
	require.Equal(t, channel.WaitingSender, fsm.Phase())

	require.NoError(t, s.SkipComm("C"))

	require.Equal(t, channel.Idle, fsm.Phase())
	count, err := s.ChCount("C")
	require.NoError(t, err)
	require.Equal(t, uint64(0), count)
	require.Equal(t, 0, len(proc.Threads()), "the sender resumes past the send with nothing else to run")
}
