package simulator

import (
	"io"
	"math/big"
	"regexp"
	"sort"

	"github.com/asyncvlsi/actsim/bigint"
	"github.com/asyncvlsi/actsim/channel"
	"github.com/asyncvlsi/actsim/event"
	"github.com/asyncvlsi/actsim/simconfig"
	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/simtime"
	"github.com/asyncvlsi/actsim/state"
)

// renderValue stringifies ref's current value the way `get`/`mget`
// does: Tern for a Bool, decimal for an Int, FSM phase name for a
// Channel. Package-local twin of watch.renderValue, which is
// unexported and so cannot be shared across the package boundary.
func renderValue(store *state.Store, ref state.Ref) (string, error) {
	switch ref.Kind {
	case state.KindBool:
		v, err := store.GetBool(ref)
		if err != nil {
			return "", err
		}
		return v.String(), nil
	case state.KindInt:
		v, err := store.GetInt(ref)
		if err != nil {
			return "", err
		}
		return v.String(), nil
	case state.KindChannel:
		fsm, err := store.Channel(ref)
		if err != nil {
			return "", err
		}
		return fsm.Phase().String(), nil
	default:
		return "", simerr.New(simerr.Resolution, "unknown slot kind %v", ref.Kind)
	}
}

// Initialize resets every per-run singleton and elaborates the circuit
// named by spec: one child instance per declared channel-less top-level
// process name, built by the Builder its Entrypoint names, plus one
// Channel slot per declared top-level channel. It then posts the
// initial spawn event for every process's entry point, per §4.2's
// "posts initial events for every process's entry point", rather than
// starting any of them synchronously here.
func (s *Simulator) Initialize(spec *simconfig.Spec, out io.Writer) error {
	s.resetState(out, spec.Run.Seed)
	if spec.Run.Timescale > 0 {
		s.kernel.Timescale = spec.Run.Timescale
	}
	s.kernel.SetDelayPolicy(spec.DelayPolicy())
	s.warnPolicy = spec.WarningPolicy()
	s.network.SetPolicy(s.warnPolicy)

	chanNames := sortedKeys(spec.Channels)
	for _, name := range chanNames {
		cs := spec.Channels[name]
		ref, err := s.tree.Root().DeclareChannel(name, cs.Width)
		if err != nil {
			return simerr.Wrap(simerr.Usage, err, "declaring channel %q", name)
		}
		s.NameSignal(name, ref)
	}

	procNames := sortedKeys(spec.Processes)
	for _, name := range procNames {
		ps := spec.Processes[name]
		builder, ok := s.builders[ps.Entrypoint]
		if !ok {
			return simerr.New(simerr.Usage, "process %q: no registered builder %q", name, ps.Entrypoint)
		}
		scope, err := s.tree.Root().AddChild(name)
		if err != nil {
			return simerr.Wrap(simerr.Usage, err, "instantiating process %q", name)
		}
		body, err := builder(s, scope)
		if err != nil {
			return simerr.Wrap(simerr.Usage, err, "building process %q", name)
		}
		s.AddProcess(name, scope, body)
	}

	for i := range s.processes {
		s.kernel.Push(&event.Event{
			Deadline: s.kernel.Now(),
			Owner:    event.Owner{Tag: event.OwnerChp, Index: i},
			Kind:     event.KindChpResume,
			Payload:  startSignal{procIndex: i},
		})
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Step pops and dispatches up to n events. It returns whether events
// remain queued afterward.
func (s *Simulator) Step(n int) (bool, error) { return s.kernel.Step(n) }

// Advance runs every event due within delta ticks of now, then advances
// simulated time by delta regardless of whether anything fired.
func (s *Simulator) Advance(delta int64) error {
	return s.kernel.Advance(simtime.FromInt64(delta))
}

// Run dispatches events until the queue drains, a breakpoint trips, or
// the run is interrupted.
func (s *Simulator) Run() error { return s.kernel.Run() }

// Cycle repeatedly steps one event at a time, bounded by max, stopping
// early once the queue empties, a breakpoint trips, or the interrupt
// token fires -- the `cycle` command's "run to quiescence, but not
// forever" contract. Calling Cycle against an empty queue is not an
// error: it returns immediately reporting no events remained.
func (s *Simulator) Cycle(max int) (stepped int, more bool, err error) {
	for stepped < max {
		if !s.kernel.Pending() {
			return stepped, false, nil
		}
		if s.kernel.Breakpoint() {
			return stepped, true, nil
		}
		pending, err := s.kernel.Step(1)
		if err != nil {
			return stepped, pending, err
		}
		stepped++
		if !pending {
			return stepped, false, nil
		}
	}
	return stepped, s.kernel.Pending(), nil
}

// ModeReset and ModeRun toggle the kernel's dispatch filter between
// "only PRS-owned events fire" and normal operation. In reset mode every
// CHP-owned event stays queued, including one for a process that
// interprets HSE.
func (s *Simulator) ModeReset() { s.kernel.SetResetMode(true) }
func (s *Simulator) ModeRun()   { s.kernel.SetResetMode(false) }

// Resolve turns a dotted, possibly array-indexed identifier into a
// global Ref, the shared first step of every command taking a name
// argument.
func (s *Simulator) Resolve(name string) (state.Ref, error) { return s.tree.Root().Resolve(name) }

// Set writes value, given as "0"/"1"/"x" for a Bool or a decimal string
// for an Int, to the variable named by name.
func (s *Simulator) Set(name, value string) error {
	ref, err := s.Resolve(name)
	if err != nil {
		return err
	}
	switch ref.Kind {
	case state.KindBool:
		t, ok := state.ParseTern(value)
		if !ok {
			return simerr.New(simerr.Usage, "set %s: %q is not a valid Bool literal", name, value)
		}
		return s.store.SetBool(ref, t)
	case state.KindInt:
		width, err := s.store.IntWidth(ref)
		if err != nil {
			return err
		}
		mag, ok := new(big.Int).SetString(value, 10)
		if !ok {
			return simerr.New(simerr.Usage, "set %s: %q is not a valid integer literal", name, value)
		}
		return s.store.SetInt(ref, bigint.FromBigInt(width, mag))
	default:
		return simerr.New(simerr.Usage, "set %s: a channel cannot be assigned directly", name)
	}
}

// Get renders the current value of name.
func (s *Simulator) Get(name string) (string, error) {
	ref, err := s.Resolve(name)
	if err != nil {
		return "", err
	}
	return renderValue(s.store, ref)
}

// MGet renders every name in names in one call, the `mget` command's
// batch form.
func (s *Simulator) MGet(names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, name := range names {
		v, err := s.Get(name)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// ChCount reports the number of completed rendezvous a channel has seen
// since Initialize, the `chcount` command.
func (s *Simulator) ChCount(name string) (uint64, error) {
	ref, err := s.Resolve(name)
	if err != nil {
		return 0, err
	}
	fsm, err := s.store.Channel(ref)
	if err != nil {
		return 0, err
	}
	return fsm.CompletedCount(), nil
}

// Assert compares name's current value against value (parsed the same
// way Set parses its own value argument, per Kind) and, on a mismatch,
// reports a Warning through the run's active Policy, uniformly
// regardless of which policy flag is set -- Design Note (a): assert
// never gets special-cased treatment distinct from any other runtime
// anomaly.
func (s *Simulator) Assert(name, value string) error {
	ref, err := s.Resolve(name)
	if err != nil {
		return err
	}
	match, actual, err := s.assertMatches(ref, value)
	if err != nil {
		return err
	}
	if match {
		return nil
	}
	aerr := simerr.New(simerr.Warning, "assert %s: expected %q, got %q", name, value, actual)
	s.onWarning(aerr)
	switch s.warnPolicy {
	case simerr.PolicyBreak:
		s.kernel.RaiseBreakpoint()
	case simerr.PolicyExit:
		s.kernel.RaiseBreakpoint()
		return aerr
	}
	return nil
}

// assertMatches reports whether ref's current value equals value, along
// with the current value rendered for the mismatch message. Bool and
// Int are parsed and compared the same way Set validates an assignment;
// a Channel compares against its phase name.
func (s *Simulator) assertMatches(ref state.Ref, value string) (bool, string, error) {
	switch ref.Kind {
	case state.KindBool:
		want, ok := state.ParseTern(value)
		if !ok {
			return false, "", simerr.New(simerr.Usage, "assert: %q is not a valid Bool literal", value)
		}
		got, err := s.store.GetBool(ref)
		if err != nil {
			return false, "", err
		}
		return got == want, got.String(), nil
	case state.KindInt:
		width, err := s.store.IntWidth(ref)
		if err != nil {
			return false, "", err
		}
		mag, ok := new(big.Int).SetString(value, 10)
		if !ok {
			return false, "", simerr.New(simerr.Usage, "assert: %q is not a valid integer literal", value)
		}
		want := bigint.FromBigInt(width, mag)
		got, err := s.store.GetInt(ref)
		if err != nil {
			return false, "", err
		}
		return got.Cmp(want) == 0, got.String(), nil
	case state.KindChannel:
		fsm, err := s.store.Channel(ref)
		if err != nil {
			return false, "", err
		}
		got := fsm.Phase().String()
		return got == value, got, nil
	default:
		return false, "", simerr.New(simerr.Resolution, "assert: unknown slot kind %v", ref.Kind)
	}
}

// Watch, Unwatch, Breakpt, Unbreakpt delegate straight to the run's
// watch.Registry, resolving name to a Ref first so the command surface
// only ever deals in identifiers.
func (s *Simulator) Watch(name string) error {
	ref, err := s.Resolve(name)
	if err != nil {
		return err
	}
	s.watch.Watch(ref, name)
	return nil
}

func (s *Simulator) Unwatch(name string) error {
	ref, err := s.Resolve(name)
	if err != nil {
		return err
	}
	s.watch.Unwatch(ref)
	return nil
}

func (s *Simulator) Breakpt(name string) error {
	ref, err := s.Resolve(name)
	if err != nil {
		return err
	}
	s.watch.Breakpt(ref, name)
	return nil
}

func (s *Simulator) Unbreakpt(name string) error {
	ref, err := s.Resolve(name)
	if err != nil {
		return err
	}
	s.watch.Unbreakpt(ref)
	return nil
}

// Filter installs a `filter` command regexp over watch/breakpoint
// output; an empty pattern clears it.
func (s *Simulator) Filter(pattern string) error {
	if pattern == "" {
		s.watch.Filter(nil)
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return simerr.Wrap(simerr.Usage, err, "compiling filter pattern %q", pattern)
	}
	s.watch.Filter(re)
	return nil
}

// Logfile redirects rendered watch lines to w.
func (s *Simulator) Logfile(w io.Writer) { s.watch.Logfile(w) }

// Random, NoRandom, RandomSeed, RandomChoice control the kernel's timing
// and choice PRNG policy.
func (s *Simulator) Random(min, max int64) { s.kernel.SetDelayPolicy(event.DelayPolicy{Mode: event.DelayRandomBounded, Min: min, Max: max}) }
func (s *Simulator) NoRandom() {
	s.kernel.SetDelayPolicy(event.DelayPolicy{Mode: event.DelayDeterministic})
}
func (s *Simulator) RandomSeed(seed int64)     { s.kernel.SetSeed(seed) }
func (s *Simulator) RandomChoice(on bool)      { s.kernel.SetRandomChoice(on) }
func (s *Simulator) RandomChoiceEnabled() bool { return s.kernel.RandomChoiceEnabled() }

// BreakOnWarn, ExitOnWarn, ResumeOnWarn select the warning Policy every
// subsequent Assert/PRS-conflict/exclusive-group violation is routed
// through.
func (s *Simulator) BreakOnWarn()  { s.warnPolicy = simerr.PolicyBreak; s.network.SetPolicy(s.warnPolicy) }
func (s *Simulator) ExitOnWarn()   { s.warnPolicy = simerr.PolicyExit; s.network.SetPolicy(s.warnPolicy) }
func (s *Simulator) ResumeOnWarn() { s.warnPolicy = simerr.PolicyIgnore; s.network.SetPolicy(s.warnPolicy) }

// LastWarning reports the most recent Warning raised by an Assert or by
// the PRS network, or nil if none has occurred since Initialize.
func (s *Simulator) LastWarning() *simerr.Error { return s.lastWarning }

// GCRetry forces every guard-blocked thread of the named process to
// re-evaluate its selection/loop guard from scratch, escaping a
// spurious deadlock.
func (s *Simulator) GCRetry(processName string) error {
	idx, ok := s.procIndex[processName]
	if !ok {
		return simerr.New(simerr.Resolution, "no such process %q", processName)
	}
	return s.processes[idx].GCRetry()
}

// SkipComm locates whichever side of channel name is currently blocked,
// releases it at the FSM level and advances the owning thread past its
// NSend/NRecv node with nothing delivered. Per Design Note (b), a
// channel caught in either probe-wait phase is a StateIllegal error:
// skip-comm only ever recovers a plain blocked rendezvous, not a probe
// guard's wait.
func (s *Simulator) SkipComm(name string) error {
	ref, err := s.Resolve(name)
	if err != nil {
		return err
	}
	fsm, err := s.store.Channel(ref)
	if err != nil {
		return err
	}
	switch fsm.Phase() {
	case channel.Idle:
		return simerr.New(simerr.StateIllegal, "skip-comm %s: channel is idle", name)
	case channel.WaitingSendProbe, channel.WaitingRecvProbe:
		return simerr.New(simerr.StateIllegal, "skip-comm %s: channel is in a probe-wait phase", name)
	}
	for _, p := range s.processes {
		threadID, isSend, found := p.BlockedChannelThread(ref)
		if !found {
			continue
		}
		if isSend {
			if _, err := fsm.SkipSend(); err != nil {
				return simerr.Wrap(simerr.StateIllegal, err, "skip-comm %s", name)
			}
		} else {
			if _, err := fsm.SkipRecv(); err != nil {
				return simerr.Wrap(simerr.StateIllegal, err, "skip-comm %s", name)
			}
		}
		if err := s.store.NotifyChannel(ref); err != nil {
			return err
		}
		return p.SkipComm(threadID)
	}
	return simerr.New(simerr.StateIllegal, "skip-comm %s: no thread is blocked on this channel", name)
}
