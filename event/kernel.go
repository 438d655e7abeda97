package event

import (
	"container/heap"
	"context"
	"math/rand"

	"github.com/asyncvlsi/actsim/simtime"
)

// Dispatcher receives one Event at a time from the Kernel's run loop.
// The simulator implements this once and routes on ev.Owner.Tag to the
// right subsystem (chp, prs, watch/monitor).
type Dispatcher interface {
	Dispatch(ev *Event) error
}

// DispatcherFunc adapts a plain function to the Dispatcher interface,
// the same shape state.WatcherFunc gives Store.Subscribe callers.
type DispatcherFunc func(ev *Event) error

func (f DispatcherFunc) Dispatch(ev *Event) error { return f(ev) }

// DelayMode selects how a compiled node's declared delay is turned into
// an effective scheduling delay.
type DelayMode int

const (
	// DelayDeterministic always uses the declared delay unchanged.
	DelayDeterministic DelayMode = iota
	// DelayRandomBounded always draws uniformly from [Min, Max],
	// ignoring any declared delay.
	DelayRandomBounded
	// DelayRandomUnspecifiedOnly draws from [Min, Max] only when the
	// compiled node did not declare a delay at all.
	DelayRandomUnspecifiedOnly
)

// DelayPolicy is the kernel-wide timing policy configured by the
// `random`/`norandom` commands.
type DelayPolicy struct {
	Mode     DelayMode
	Min, Max int64
}

// Resolve computes the effective delay for a node whose compiled delay
// is `declared` (nil meaning the graph did not specify one), drawing
// from rng when the policy calls for randomness.
func (p DelayPolicy) Resolve(declared *int64, rng *rand.Rand) int64 {
	switch p.Mode {
	case DelayRandomBounded:
		return randRange(rng, p.Min, p.Max)
	case DelayRandomUnspecifiedOnly:
		if declared == nil {
			return randRange(rng, p.Min, p.Max)
		}
		return *declared
	default:
		if declared == nil {
			return 0
		}
		return *declared
	}
}

func randRange(rng *rand.Rand, min, max int64) int64 {
	if max <= min {
		return min
	}
	return min + rng.Int63n(max-min+1)
}

// Kernel owns global simulation time, the event queue, the PRNG and the
// interrupt/breakpoint flags. It is deliberately single-threaded and
// cooperative: Dispatch is always called from the same goroutine that
// called Step/Advance/Run, so no locking is needed anywhere in the
// simulator (per the concurrency model: all concurrency is simulated).
type Kernel struct {
	queue *Queue
	now   simtime.Time

	// Timescale is seconds per tick, tracked purely for display via
	// get_sim_time; it never enters scheduling arithmetic.
	Timescale float64

	resetMode bool

	breakpointTripped bool

	dispatcher Dispatcher

	rng          *rand.Rand
	seed         int64
	randomChoice bool
	delay        DelayPolicy

	ctx    context.Context
	cancel context.CancelFunc
}

// NewKernel builds a Kernel dispatching to d, seeded for reproducible
// random timing and choice.
func NewKernel(d Dispatcher, seed int64) *Kernel {
	ctx, cancel := context.WithCancel(context.Background())
	return &Kernel{
		queue:      NewQueue(),
		now:        simtime.Zero,
		Timescale:  1e-9,
		dispatcher: d,
		rng:        rand.New(rand.NewSource(seed)),
		seed:       seed,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (k *Kernel) Now() simtime.Time { return k.now }

// Push schedules ev at ev.Deadline and returns a handle Cancel can use.
func (k *Kernel) Push(ev *Event) int { return k.queue.Push(ev) }

// Cancel best-effort cancels a previously pushed event.
func (k *Kernel) Cancel(handle int) bool { return k.queue.Cancel(handle) }

// Rand exposes the kernel's single PRNG; every random decision in the
// simulator -- timing and non-deterministic choice alike -- draws from
// this one source so a seed reproduces a whole run.
func (k *Kernel) Rand() *rand.Rand { return k.rng }

// RandomChoiceEnabled reports the current `random_choice` policy.
func (k *Kernel) RandomChoiceEnabled() bool { return k.randomChoice }

func (k *Kernel) SetRandomChoice(on bool) { k.randomChoice = on }

// SetSeed reseeds the PRNG, used by the `random_seed` command so that a
// run can be replayed deterministically from a known point.
func (k *Kernel) SetSeed(seed int64) {
	k.seed = seed
	k.rng = rand.New(rand.NewSource(seed))
}

func (k *Kernel) Seed() int64 { return k.seed }

func (k *Kernel) SetDelayPolicy(p DelayPolicy) { k.delay = p }
func (k *Kernel) DelayPolicy() DelayPolicy     { return k.delay }

// ResetMode reports whether the kernel is currently restricting dispatch
// to PRS-owned (OwnerPrs) events. Every OwnerChp event is held while it
// is on, including one for a process that interprets HSE.
func (k *Kernel) ResetMode() bool { return k.resetMode }

// SetResetMode switches the dispatch filter without touching the queue:
// events of either origin stay queued, only the predicate governing
// which ones are allowed to fire changes.
func (k *Kernel) SetResetMode(on bool) { k.resetMode = on }

// Interrupt sets the cancellation token the run loop polls between
// dispatches, standing in for the original SIGINT-driven
// LispInterruptExecution global.
func (k *Kernel) Interrupt() { k.cancel() }

// ClearInterrupt installs a fresh cancellation token so the kernel can
// resume running after an interrupt.
func (k *Kernel) ClearInterrupt() {
	k.ctx, k.cancel = context.WithCancel(context.Background())
}

func (k *Kernel) interrupted() bool {
	select {
	case <-k.ctx.Done():
		return true
	default:
		return false
	}
}

// Breakpoint reports whether a breakpoint has tripped since the last
// ClearBreakpoint.
func (k *Kernel) Breakpoint() bool { return k.breakpointTripped }

// RaiseBreakpoint is called by WatchBreak when a breakpoint-registered
// signal mutates; the run loop checks this after finishing the event
// that triggered it, per the "stops after the firing event completes"
// cancellation rule.
func (k *Kernel) RaiseBreakpoint() { k.breakpointTripped = true }

func (k *Kernel) ClearBreakpoint() { k.breakpointTripped = false }

// dispatchable reports whether ev may fire under the current reset-mode
// filter.
func (k *Kernel) dispatchable(ev *Event) bool {
	if !k.resetMode {
		return true
	}
	return ev.Owner.Tag == OwnerPrs
}

// popDispatchable pops events in deadline order until it finds one that
// passes both within (if non-nil, a deadline bound) and dispatchable,
// holding every event it skips past in a side buffer and re-queuing them
// before returning, with their original Tiebreak and Handle, so a held
// event keeps its place among equal deadlines and Cancel still finds it.
// This is what lets reset mode settle a circuit even
// when a CHP-owned event sits ahead of a PRS one in the queue: the CHP
// event is set aside rather than stalling the whole run loop. within
// returning false also ends the search (used by Advance's time bound),
// since the queue is time-ordered and no later event could pass either.
func (k *Kernel) popDispatchable(within func(simtime.Time) bool) (*Event, bool) {
	var held []*Event
	defer func() {
		for _, ev := range held {
			heap.Push(&k.queue.h, ev)
			k.queue.byHandle[ev.handle] = ev
		}
	}()
	for {
		ev := k.queue.Pop()
		if ev == nil {
			return nil, false
		}
		if within != nil && !within(ev.Deadline) {
			held = append(held, ev)
			return nil, false
		}
		if k.dispatchable(ev) {
			return ev, true
		}
		held = append(held, ev)
	}
}

// Step pops and dispatches up to n events, stopping early if the
// interrupt token fires, a breakpoint trips, or no dispatchable event
// remains. It returns whether events remain in the queue afterward.
func (k *Kernel) Step(n int) (bool, error) {
	for i := 0; i < n; i++ {
		if k.interrupted() || k.breakpointTripped {
			break
		}
		ev, ok := k.popDispatchable(nil)
		if !ok {
			break
		}
		k.now = ev.Deadline
		if err := k.dispatcher.Dispatch(ev); err != nil {
			return k.queue.Len() > 0, err
		}
	}
	_, more := k.queue.PeekTime()
	return more, nil
}

// Advance runs every dispatchable event whose deadline is <= now+delta,
// then sets now = now+delta regardless of whether anything fired.
func (k *Kernel) Advance(delta simtime.Time) error {
	target := k.now.Add(delta)
	within := func(d simtime.Time) bool { return !target.Before(d) }
	for {
		if k.interrupted() || k.breakpointTripped {
			break
		}
		ev, ok := k.popDispatchable(within)
		if !ok {
			break
		}
		k.now = ev.Deadline
		if err := k.dispatcher.Dispatch(ev); err != nil {
			return err
		}
	}
	if target.Cmp(k.now) > 0 {
		k.now = target
	}
	return nil
}

// Run dispatches events until the queue holds nothing dispatchable, a
// breakpoint trips, or the interrupt token fires.
func (k *Kernel) Run() error {
	for {
		if k.interrupted() || k.breakpointTripped {
			return nil
		}
		ev, ok := k.popDispatchable(nil)
		if !ok {
			return nil
		}
		k.now = ev.Deadline
		if err := k.dispatcher.Dispatch(ev); err != nil {
			return err
		}
	}
}

// Pending reports whether the queue still holds any non-cancelled event,
// including one the reset-mode filter currently holds back.
func (k *Kernel) Pending() bool {
	_, ok := k.queue.PeekTime()
	return ok
}
